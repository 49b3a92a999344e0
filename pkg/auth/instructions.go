package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes short setup instructions for a service token
func ShowTokenGuide(w io.Writer, service Service) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	switch service {
	case ServiceProvider:
		fmt.Fprintln(w, "SCRAPING PROVIDER TOKEN")
		fmt.Fprintln(w, strings.Repeat("=", 60))
		fmt.Fprintln(w, "1. Sign in to your scraping provider console")
		fmt.Fprintln(w, "2. Open Settings > Integrations (or API tokens)")
		fmt.Fprintln(w, "3. Copy the personal API token")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "The token is sent as a bearer token with every actor run.")
	case ServiceTranscription:
		fmt.Fprintln(w, "TRANSCRIPTION ENDPOINT TOKEN")
		fmt.Fprintln(w, strings.Repeat("=", 60))
		fmt.Fprintln(w, "Paste the bearer token issued for your transcription endpoint.")
		fmt.Fprintln(w, "Leave it empty if the endpoint does not require one.")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Alternatively export %s; it is read when no stored token exists.\n", EnvVars[service])
	fmt.Fprintln(w, strings.Repeat("=", 60))
}
