// Package stealth applies anti-detection JavaScript patches to a page
// before navigation, masking the common signals anti-bot systems use to
// fingerprint headless/CDP-driven Chrome.
package stealth

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
)

// Apply injects the stealth script into page. Call it right after page
// creation and before navigation.
//
// Syntax and reference errors in the script are treated as fatal since they
// indicate a broken patch set; other evaluation errors are logged and
// swallowed since some APIs are absent on about:blank.
func Apply(page *rod.Page) error {
	_, err := page.Evaluate(rod.Eval(script))
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "SyntaxError") {
			return fmt.Errorf("stealth script syntax error: %w", err)
		}
		if strings.Contains(errStr, "ReferenceError") {
			return fmt.Errorf("stealth script reference error: %w", err)
		}
		log.Warn().Err(err).Msg("stealth script had non-fatal errors, continuing")
	}
	return nil
}
