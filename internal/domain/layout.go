package domain

// LayoutConfig is the rendering presentation: title block, colors, fonts.
// Mutable up to layout confirmation, then an immutable rendering input.
type LayoutConfig struct {
	UseTitleBlock    bool   `json:"use_title_block"`
	TitleBGColor     string `json:"title_bg_color"`
	TitleFont        string `json:"title_font"`
	SubtitleFont     string `json:"subtitle_font"`
	TitleFontSize    int    `json:"title_font_size"`
	SubtitleFontSize int    `json:"subtitle_font_size"`
}

// DefaultLayoutConfig returns the product defaults for a 9:16 short.
func DefaultLayoutConfig() *LayoutConfig {
	return &LayoutConfig{
		UseTitleBlock:    true,
		TitleBGColor:     "#323296",
		TitleFont:        "Paperlogy-7Bold",
		SubtitleFont:     "Paperlogy-4Regular",
		TitleFontSize:    100,
		SubtitleFontSize: 80,
	}
}

// Merge overlays the non-zero fields of override onto c and returns c.
// The title-block toggle is boolean and always taken from the override.
func (c *LayoutConfig) Merge(override *LayoutConfig) *LayoutConfig {
	if override == nil {
		return c
	}
	c.UseTitleBlock = override.UseTitleBlock
	if override.TitleBGColor != "" {
		c.TitleBGColor = override.TitleBGColor
	}
	if override.TitleFont != "" {
		c.TitleFont = override.TitleFont
	}
	if override.SubtitleFont != "" {
		c.SubtitleFont = override.SubtitleFont
	}
	if override.TitleFontSize > 0 {
		c.TitleFontSize = override.TitleFontSize
	}
	if override.SubtitleFontSize > 0 {
		c.SubtitleFontSize = override.SubtitleFontSize
	}
	return c
}

// Clone returns a copy of the layout config.
func (c *LayoutConfig) Clone() *LayoutConfig {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
