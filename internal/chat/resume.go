// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// RESUMPTION POLICY
// =============================================================================

// continuationPhrases are the exact requests that mean "pick up where the
// last answer stopped". Matching is whitespace-normalized and Unicode
// case-folded, so "Continue", "GO ON" and "जारी रखो" all qualify; anything
// beyond the fixed set ("please continue") is treated as a fresh question.
var continuationPhrases = []string{
	"continue",
	"resume",
	"go on",
	"keep going",
	"more",
	"जारी रखो",
	"आगे बढ़ो",
	"aage badho",
}

// ResumptionPolicy decides when a user message is a continuation request
// and what tail of the interrupted answer seeds the next exchange.
type ResumptionPolicy struct {
	fold      cases.Caser
	phrases   map[string]struct{}
	seedRunes int
	minRunes  int
}

// NewResumptionPolicy builds a policy with the given seed bounds.
// Non-positive bounds fall back to the defaults (2000 and 200 runes).
func NewResumptionPolicy(seedRunes, minSeedRunes int) *ResumptionPolicy {
	if seedRunes <= 0 {
		seedRunes = 2000
	}
	if minSeedRunes <= 0 {
		minSeedRunes = 200
	}

	p := &ResumptionPolicy{
		fold:      cases.Fold(),
		phrases:   make(map[string]struct{}, len(continuationPhrases)),
		seedRunes: seedRunes,
		minRunes:  minSeedRunes,
	}
	for _, phrase := range continuationPhrases {
		p.phrases[p.normalize(phrase)] = struct{}{}
	}
	return p
}

// ShouldContinue reports whether userText is a continuation request.
func (p *ResumptionPolicy) ShouldContinue(userText string) bool {
	norm := p.normalize(userText)
	if norm == "" {
		return false
	}
	_, ok := p.phrases[norm]
	return ok
}

// ContinuationSeed returns the trailing slice of the last checkpoint that
// should seed the next request. A checkpoint shorter than the minimum is
// not worth continuing from, so the second return is false and the
// request goes out unseeded.
func (p *ResumptionPolicy) ContinuationSeed(lastCheckpoint string) (string, bool) {
	if util.RuneLen(lastCheckpoint) < p.minRunes {
		return "", false
	}
	return util.TailRunes(lastCheckpoint, p.seedRunes), true
}

func (p *ResumptionPolicy) normalize(s string) string {
	return p.fold.String(strings.Join(strings.Fields(s), " "))
}

// ContinuationPrompt frames a checkpoint tail as the system context block
// for the next request, instructing the model to resume mid-answer.
func ContinuationPrompt(seed string) string {
	return "The previous answer was interrupted. Its ending is shown between the " +
		"markers below. Continue from exactly where it stops. Do not repeat the " +
		"shown text and do not summarize what came before.\n" +
		"<<<ANSWER TAIL\n" + seed + "\nANSWER TAIL>>>"
}
