package constant

const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"

	DefaultRoute = "/"

	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"

	PresetEventInsert = "INSERT"
	PresetEventUpdate = "UPDATE"
	PresetEventDelete = "DELETE"

	// Postgres unique_violation
	PgUniqueViolation = "23505"

	PresetGeneratePromptV1 = `You design website color themes. Produce ONE JSON object for the request below with exactly
these keys: "name", "primary_color", "secondary_color", "accent_color", "background_color",
"foreground_color", "theme" ("light" | "dark" | "system"), "heading_font", "body_font", "border_radius".
Colors are hex strings like "#1e293b". Reply with the JSON object only.

REQUEST:
%s`

	PresetNamePromptV1 = `Give a short, memorable name (max 4 words) for a website theme with these settings.
Reply with the name only.

primary: %s, secondary: %s, accent: %s, background: %s, foreground: %s, theme: %s`
)
