// Package wizard provides the interactive configuration wizard behind
// "addonctl init".
//
// It uses charmbracelet/huh to walk through cluster identity, add-on
// selection, and report settings, then builds a Config and writes it as
// commented YAML. RunWizard collects answers, BuildConfig converts them, and
// WriteConfig produces the output file.
package wizard
