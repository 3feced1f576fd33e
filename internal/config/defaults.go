package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Site.Title == "" {
		cfg.Site.Title = "Folio"
	}
	if cfg.Site.BaseURL == "" {
		cfg.Site.BaseURL = "https://example.com"
	}
	if cfg.Site.Description == "" {
		cfg.Site.Description = "Updates, projects and photos"
	}
	if cfg.Paths.ContentDir == "" {
		cfg.Paths.ContentDir = "./content"
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = "./dist"
	}
	if cfg.Paths.Preserve == nil {
		cfg.Paths.Preserve = []string{".git", "CNAME"}
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./.folio/builds.db"
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".md", ".yaml", ".html", ".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	if cfg.Import.MaxWidth == 0 {
		cfg.Import.MaxWidth = 2400
	}
	if cfg.Import.MaxHeight == 0 {
		cfg.Import.MaxHeight = 2400
	}
	if cfg.Import.Quality == 0 {
		cfg.Import.Quality = 85
	}
	if cfg.Import.Converter == "" {
		cfg.Import.Converter = "magick"
	}
	if cfg.Home.RecentPosts == 0 {
		cfg.Home.RecentPosts = 5
	}
	if cfg.Home.RecentGalleries == 0 {
		cfg.Home.RecentGalleries = 3
	}
}
