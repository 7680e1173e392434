package icons

import "github.com/nhath/ezquery/internal/core"

const (
	// Database Icons (Nerd Font)
	IconPostgres = ""
	IconMySQL    = ""
	IconSQLite   = "\U000f01bc"

	// Utility Icons
	IconLock      = "\U000f033e"
	IconSuccess   = "✓"
	IconError     = "⚠"
	IconSelect    = "▸"
	IconBullet    = "•"
	IconSeparator = "  •  "
	IconTable     = "\U000f04eb"
	IconView      = "\U000f0208"
	IconKey       = "\U000f0306"
)

// Database returns the icon of a driver type.
func Database(t core.DriverType) string {
	switch t {
	case core.MySQL:
		return IconMySQL
	case core.SQLite:
		return IconSQLite
	default:
		return IconPostgres
	}
}

// Status returns a one-cell marker for a connection status.
func Status(s core.ConnectionStatus) string {
	switch s {
	case core.StatusConnected:
		return "●"
	case core.StatusFailed:
		return IconError
	case core.StatusConnecting:
		return "◌"
	default:
		return "○"
	}
}
