package i18n

import "net/http"

// LangCookie remembers an explicit language choice made with ?lang=.
const LangCookie = "lang"

// Middleware picks a language per request from ?lang=, the lang cookie and
// Accept-Language, in that order, and stores its localizer in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var prefs []string
		if q := r.URL.Query().Get("lang"); q != "" {
			lang := Match(q)
			http.SetCookie(w, &http.Cookie{
				Name:     LangCookie,
				Value:    lang,
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				SameSite: http.SameSiteLaxMode,
			})
			prefs = append(prefs, lang)
		}
		if c, err := r.Cookie(LangCookie); err == nil {
			prefs = append(prefs, c.Value)
		}
		prefs = append(prefs, r.Header.Get("Accept-Language"))

		// Match per preference so an explicit choice wins over the header.
		lang := fallback.String()
		for _, p := range prefs {
			if p != "" {
				lang = Match(p)
				break
			}
		}
		ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
