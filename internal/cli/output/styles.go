package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by text mode.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	ModelPath lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
}

// Palette
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79FF"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	colorError   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
)

// NewStyles builds styles bound to a lipgloss renderer, so color output
// follows that renderer's profile.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:   r.NewStyle().Bold(true).Foreground(colorPrimary).Underline(true),
		Header2:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		ModelPath: r.NewStyle().Bold(true),
		Success:   r.NewStyle().Foreground(colorSuccess),
		Warning:   r.NewStyle().Foreground(colorWarning),
		Error:     r.NewStyle().Foreground(colorError),
		Muted:     r.NewStyle().Foreground(colorMuted),
		Bold:      r.NewStyle().Bold(true),
	}
}
