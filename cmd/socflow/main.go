// Package main provides the socflow CLI.
//
// socflow runs security alerts through multi-stage LLM pipelines and renders
// the resulting incident report.
//
// Usage:
//
//	socflow run "<alert text>"
//	socflow run --file alert.txt --pipeline triage --pdf report.pdf
//	socflow serve
//	socflow watch /var/log/auth.log
//
// See --help for all available options.
package main

func main() {
	Execute()
}
