package testutil

// WithSMRIPrepOutputs adds a derivative description and the anatomical
// outputs of one subject with one session-less T1w.
func (b *Builder) WithSMRIPrepOutputs(subject string) *Builder {
	p := "sub-" + subject + "/anat/sub-" + subject
	return b.
		WithDescription(Name("sMRIPrep"), DatasetType("derivative"), GeneratedBy("sMRIPrep", "0.15.0")).
		WithFiles(
			p+"_desc-preproc_T1w.nii.gz",
			p+"_desc-preproc_T1w.json",
			p+"_desc-brain_mask.nii.gz",
			p+"_dseg.nii.gz",
			p+"_space-MNI152NLin6Asym_res-2_desc-preproc_T1w.nii.gz",
			p+"_from-T1w_to-MNI152NLin6Asym_mode-image_xfm.h5",
			p+"_from-MNI152NLin6Asym_to-T1w_mode-image_xfm.h5",
			p+"_from-fsnative_to-T1w_mode-image_xfm.txt",
			p+"_hemi-L_pial.surf.gii",
			p+"_hemi-R_pial.surf.gii",
			p+"_hemi-L_white.surf.gii",
			p+"_hemi-R_white.surf.gii",
			p+"_hemi-L_thickness.shape.gii",
			p+"_hemi-R_thickness.shape.gii",
		)
}

// WithAtlas adds an atlas dataset layout for name: a description with
// DatasetType atlas, a labels TSV and one NIfTI image per space.
func (b *Builder) WithAtlas(name string, spaces ...string) *Builder {
	if b.description == nil {
		b.WithDescription(Name("atlases"), DatasetType("atlas"))
	}
	dir := "atlas-" + name + "/atlas-" + name
	b.WithFile(dir+"_dseg.tsv", "index\tlabel\n1\tregion1\n2\tregion2\n")
	for _, space := range spaces {
		b.WithFiles(dir + "_space-" + space + "_dseg.nii.gz")
	}
	return b
}
