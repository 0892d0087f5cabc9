package parser

// TemplateProfile tunables of the heuristics; loaded from the [import] section of config.toml
type TemplateProfile struct {
	HeaderWindow    int `toml:"header_window"`      // leading rows scanned for a header
	MinMatches      int `toml:"min_matches"`        // header tokens a row must match
	BlankRunToClose int `toml:"blank_run_to_close"` // blank rows that close an attendance section
	TitleRows       int `toml:"title_rows"`         // leading rows searched for the year context
	SubHeaderDepth  int `toml:"sub_header_depth"`   // rows below a compound header searched for in/out labels

	SectionMarkers []string `toml:"section_markers"`
	Terminators    []string `toml:"terminators"`
	SkipMarkers    []string `toml:"skip_markers"` // signature and footer lines

	CheckInSuffixes  []string `toml:"check_in_suffixes"`
	CheckOutSuffixes []string `toml:"check_out_suffixes"`
	SuffixScanRadius int      `toml:"suffix_scan_radius"`

	// template-offset fallback: columns relative to the coarse check-in/out header; nil takes the default
	CheckInOffset  *int `toml:"check_in_offset"`
	CheckOutOffset *int `toml:"check_out_offset"`
}

// Offsets template-offset columns of check-in and check-out
func (p TemplateProfile) Offsets() (in, out int) {
	d := DefaultProfile()
	in, out = *d.CheckInOffset, *d.CheckOutOffset
	if p.CheckInOffset != nil {
		in = *p.CheckInOffset
	}
	if p.CheckOutOffset != nil {
		out = *p.CheckOutOffset
	}
	return in, out
}

// WithOffsets copy of the profile with both template offsets set
func (p TemplateProfile) WithOffsets(in, out int) TemplateProfile {
	p.CheckInOffset, p.CheckOutOffset = &in, &out
	return p
}

// DefaultProfile profile matching the monthly attendance report template
func DefaultProfile() TemplateProfile {
	return TemplateProfile{
		HeaderWindow:    30,
		MinMatches:      3,
		BlankRunToClose: 3,
		TitleRows:       10,
		SubHeaderDepth:  2,
		SectionMarkers:  []string{"dolgozó neve", "munkavállaló neve", "employee name"},
		Terminators:     []string{"mindösszesen", "összesen", "total"},
		SkipMarkers:     []string{"aláírás", "signature", "készítette", "ellenőrizte"},

		CheckInSuffixes:  []string{"BE", "IN"},
		CheckOutSuffixes: []string{"KI", "OUT"},
		SuffixScanRadius: 3,

		CheckInOffset:  intPtr(0),
		CheckOutOffset: intPtr(4),
	}
}

func intPtr(n int) *int {
	return &n
}

// WithDefaults fills unset values from DefaultProfile
func (p TemplateProfile) WithDefaults() TemplateProfile {
	d := DefaultProfile()
	if p.HeaderWindow <= 0 {
		p.HeaderWindow = d.HeaderWindow
	}
	if p.MinMatches <= 0 {
		p.MinMatches = d.MinMatches
	}
	if p.BlankRunToClose <= 0 {
		p.BlankRunToClose = d.BlankRunToClose
	}
	if p.TitleRows <= 0 {
		p.TitleRows = d.TitleRows
	}
	if p.SubHeaderDepth <= 0 {
		p.SubHeaderDepth = d.SubHeaderDepth
	}
	if len(p.SectionMarkers) == 0 {
		p.SectionMarkers = d.SectionMarkers
	}
	if len(p.Terminators) == 0 {
		p.Terminators = d.Terminators
	}
	if len(p.SkipMarkers) == 0 {
		p.SkipMarkers = d.SkipMarkers
	}
	if len(p.CheckInSuffixes) == 0 {
		p.CheckInSuffixes = d.CheckInSuffixes
	}
	if len(p.CheckOutSuffixes) == 0 {
		p.CheckOutSuffixes = d.CheckOutSuffixes
	}
	if p.SuffixScanRadius <= 0 {
		p.SuffixScanRadius = d.SuffixScanRadius
	}
	if p.CheckInOffset == nil {
		p.CheckInOffset = d.CheckInOffset
	}
	if p.CheckOutOffset == nil {
		p.CheckOutOffset = d.CheckOutOffset
	}
	return p
}
