// Package reader assembles the lower-level packages (header, subhdr, schema, compress, cell,
// textcodec) into the public Decoder: the state machine that walks a SAS7BDAT file's metadata
// pages once, then its data/mix pages row by row. Grounded in original_source's SasReader
// (get_properties → parse_metadata → read_line) and, for its functional-options configuration,
// arloliu/mebo's internal/options pattern.
package reader

import (
	"github.com/OrganicProgramming/SAS-reader/internal/options"
)

// Option configures a Decoder at construction time.
type Option = options.Option[*config]

// config holds the Decoder behaviors a caller can override. It is intentionally unexported:
// callers only ever see it through With* options and the Decoder they get back.
type config struct {
	trimStrings      bool
	noAlignCorrection bool
}

func defaultConfig() *config {
	return &config{}
}

// WithTrimStrings controls whether trailing NUL/space padding is stripped from decoded STR
// cells. Defaults to false: the raw fixed-width byte span is preserved unless a caller opts
// in (spec.md section 6).
func WithTrimStrings(trim bool) Option {
	return options.NoError(func(c *config) { c.trimStrings = trim })
}

// WithNoAlignCorrection disables the MIX-page row-array alignment correction
// (spec.md 4.8's align_corr term). Only useful for reproducing files written by a tool that
// doesn't apply it; leave enabled for real SAS output.
func WithNoAlignCorrection(disable bool) Option {
	return options.NoError(func(c *config) { c.noAlignCorrection = disable })
}
