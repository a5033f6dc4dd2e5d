package httpx

// CurrentPage constants define the page identifiers used in templates and navigation.
const (
	PageHome          = "home"
	PageSection       = "section"
	PageSignIn        = "sign-in"
	PageVerifyEmail   = "verify-email"
	PageResetPassword = "reset-password"
	PageLoading       = "loading"
	PageNotFound      = "not-found"
)

// Template paths used for loading templates in dev mode and tests.
const (
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
)

//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageHome:          "home-content",
	PageSection:       "section-content",
	PageSignIn:        "sign-in-content",
	PageVerifyEmail:   "verify-email-content",
	PageResetPassword: "reset-password-content",
	PageLoading:       "loading-content",
	PageNotFound:      "not-found-content",
}

// ContentTemplateFor returns the content template for the given CurrentPage.
// Falls back to not-found-content for unknown pages.
func ContentTemplateFor(currentPage string) string {
	if name, ok := contentTemplates[currentPage]; ok {
		return name
	}
	return "not-found-content"
}
