package models

import (
	"fmt"
	"strings"
)

// SymbolPair maps a provider ticker to the canonical symbol stored in the tables.
type SymbolPair struct {
	Provider  string `json:"provider" yaml:"provider"`
	Canonical string `json:"canonical" yaml:"canonical"`
}

// Universe is the fixed, ordered set of instruments the syncer tracks.
type Universe struct {
	Indices []SymbolPair `json:"indices" yaml:"indices"`
	Stocks  []SymbolPair `json:"stocks" yaml:"stocks"`
}

func (u Universe) Len() int {
	return len(u.Indices) + len(u.Stocks)
}

func (u Universe) Validate() error {
	var errs []string

	if u.Len() == 0 {
		errs = append(errs, "symbol universe is empty")
	}

	canonical := make(map[string]string)
	check := func(kind string, pairs []SymbolPair) {
		providers := make(map[string]bool)
		for i, p := range pairs {
			if strings.TrimSpace(p.Provider) == "" || strings.TrimSpace(p.Canonical) == "" {
				errs = append(errs, fmt.Sprintf("%s[%d]: provider and canonical symbols are required", kind, i))
				continue
			}
			if providers[p.Provider] {
				errs = append(errs, fmt.Sprintf("%s[%d]: duplicate provider symbol %q", kind, i, p.Provider))
			}
			providers[p.Provider] = true
			if prev, ok := canonical[p.Canonical]; ok {
				errs = append(errs, fmt.Sprintf("%s[%d]: canonical symbol %q already used by %s", kind, i, p.Canonical, prev))
			}
			canonical[p.Canonical] = kind
		}
	}
	check("indices", u.Indices)
	check("stocks", u.Stocks)

	if len(errs) > 0 {
		return fmt.Errorf("invalid symbol universe:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// DefaultUniverse is the IDX universe the syncer ships with.
func DefaultUniverse() Universe {
	return Universe{
		Indices: []SymbolPair{
			{Provider: "^JKSE", Canonical: "IHSG"},
		},
		Stocks: jkPairs(
			"ADRO", "ASII", "AKRA", "ANTM", "BBCA", "BBNI", "BBRI", "BMRI",
			"ITMG", "ICBP", "INDF", "ISAT", "KLBF", "MEDC", "SMGR", "PTBA",
			"TLKM", "UNTR", "UNVR", "TPIA", "EXCL", "GOTO",
		),
	}
}

func jkPairs(codes ...string) []SymbolPair {
	out := make([]SymbolPair, len(codes))
	for i, c := range codes {
		out[i] = SymbolPair{Provider: c + ".JK", Canonical: c}
	}
	return out
}
