// Package collector drives one browser session across a list of TownNews
// sites and turns each rendered search page into a JSON document.
//
// The orchestrator visits targets strictly in order, pausing for a random
// interval between sites. A failure on one site is recorded in that site's
// Outcome and never stops the run; only failing to acquire the browser does.
package collector
