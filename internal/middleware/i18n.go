package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"clearmark/internal/i18n"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N stores the detected locale and country on the request context so
// handlers can stamp new runs with them. Progress messages are rendered in
// the run's locale for the rest of its life.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// detectLocale walks the detection chain: explicit X-Locale header, then
// Accept-Language, then the request country, then the configured default.
func detectLocale(r *http.Request, fallback string, country string) string {
	if v := r.Header.Get("X-Locale"); strings.TrimSpace(v) != "" {
		return i18n.Normalize(v)
	}
	if v := i18n.FromAcceptLanguage(r.Header.Get("Accept-Language")); v != "" {
		return v
	}
	if v := i18n.CountryLocale(country); country != "" && v != "" {
		return v
	}
	if fallback != "" {
		return i18n.Normalize(fallback)
	}
	return i18n.DefaultLocale
}

// ResolveCountry resolves a best-effort ISO country code for the request.
// Proxy headers win, then region subtags in the locale headers, then the
// GeoIP lookup on the client address.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// localeRegion extracts the first region subtag from a locale list header,
// e.g. "zh-CN,zh;q=0.9" yields "CN".
func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			region := token[idx+1:]
			// Skip script subtags like Hans in zh-Hans-CN.
			if next := strings.IndexAny(region, "-_"); next > 0 && next < len(region)-1 {
				region = region[next+1:]
			}
			if len(region) == 2 {
				return strings.ToUpper(region)
			}
		}
	}
	return ""
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return i18n.DefaultLocale
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}
