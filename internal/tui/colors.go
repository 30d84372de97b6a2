package tui

// Color constants for champ TUI theme
const (
	// Base Colors
	ColorBorder = "#3A3F55" // Grey-blue

	// Text Colors
	ColorPrimaryText   = "#E6EAF2" // Names, titles, clock
	ColorSecondaryText = "#B1B8C7" // Secondary text - subtle purple-tinted grey
	ColorDisabledText  = "#6D7383" // Idle users, locked achievements
	ColorHelpText      = "240"     // Dark grey for help text

	// Accent Colors (Purple theme)
	ColorAccentMain   = "#7C3AED" // Logo, accent elements, active borders
	ColorAccentBright = "#A78BFA" // Running clock, highlights

	// Champion Colors
	ColorGold      = "#F5B301" // Champion banner, first place
	ColorGoldLight = "#FFE8A3" // Shimmer highlight on the banner
	ColorSilver    = "#C0C7D1" // Second place
	ColorBronze    = "#CD7F32" // Third place

	// State Colors
	ColorError   = "#EF4444" // Failed start/stop
	ColorSuccess = "#22C55E" // Active users, unlocked achievements
	ColorWarning = "#F59E0B" // Evaluation warnings
)
