package views

import "strings"

// Screen is one of the navigable screens. The set is closed.
type Screen interface {
	Info() ScreenInfo
	screen()
}

// ScreenInfo is the navigation data attached to each screen.
type ScreenInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

type (
	DashboardScreen struct{}
	HistoryScreen   struct{}
	SettingsScreen  struct{}
)

func (DashboardScreen) Info() ScreenInfo {
	return ScreenInfo{ID: "dashboard", Title: "Painel Geral", Label: "Painel", Icon: "dashboard"}
}

func (HistoryScreen) Info() ScreenInfo {
	return ScreenInfo{ID: "history", Title: "Histórico", Label: "Histórico", Icon: "list"}
}

func (SettingsScreen) Info() ScreenInfo {
	return ScreenInfo{ID: "settings", Title: "Configurações", Label: "Ajustes", Icon: "settings"}
}

func (DashboardScreen) screen() {}
func (HistoryScreen) screen()   {}
func (SettingsScreen) screen()  {}

// DefaultScreen is shown after sign-in.
func DefaultScreen() Screen { return DashboardScreen{} }

// Screens lists the screens in navigation order.
func Screens() []Screen {
	return []Screen{DashboardScreen{}, HistoryScreen{}, SettingsScreen{}}
}

// ParseScreen finds a screen by id.
func ParseScreen(id string) (Screen, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, s := range Screens() {
		if s.Info().ID == id {
			return s, true
		}
	}
	return nil, false
}
