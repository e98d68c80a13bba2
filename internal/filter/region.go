package filter

import (
	"fmt"
	"strings"
)

// RegionBucket is the geographic footprint of a trial.
type RegionBucket int

const (
	RegionOther RegionBucket = iota
	RegionNAOnly
	RegionEUOnly
	RegionAPACOnly
	RegionNAAndEU
	RegionNAAndAPAC
	RegionEUAndAPAC
	RegionGlobal
)

var regionLabels = [...]string{
	RegionOther:     "Other",
	RegionNAOnly:    "NA only",
	RegionEUOnly:    "EU only",
	RegionAPACOnly:  "APAC only",
	RegionNAAndEU:   "NA and EU",
	RegionNAAndAPAC: "NA and APAC",
	RegionEUAndAPAC: "EU and APAC",
	RegionGlobal:    "Global",
}

func (r RegionBucket) String() string {
	if r < 0 || int(r) >= len(regionLabels) {
		return fmt.Sprintf("RegionBucket(%d)", int(r))
	}
	return regionLabels[r]
}

// ClassifyRegion buckets a free-text trial region by the presence of
// North America, Western Europe and Asia or Australia/Oceania.
func ClassifyRegion(region string) RegionBucket {
	na := strings.Contains(region, "North America")
	eu := strings.Contains(region, "Western Europe")
	apac := strings.Contains(region, "Asia") || strings.Contains(region, "Australia/Oceania")
	switch {
	case na && eu && apac:
		return RegionGlobal
	case na && eu:
		return RegionNAAndEU
	case na && apac:
		return RegionNAAndAPAC
	case eu && apac:
		return RegionEUAndAPAC
	case na:
		return RegionNAOnly
	case eu:
		return RegionEUOnly
	case apac:
		return RegionAPACOnly
	}
	return RegionOther
}

var regionCodes = map[string]RegionBucket{
	"na":     RegionNAOnly,
	"eu":     RegionEUOnly,
	"apac":   RegionAPACOnly,
	"naeu":   RegionNAAndEU,
	"naapac": RegionNAAndAPAC,
	"euapac": RegionEUAndAPAC,
}

// ParseRegion resolves a region selector: a short code (na, eu, apac, naeu,
// naapac, euapac) or a bucket label. "global" and "" select every region
// and report all=true.
func ParseRegion(s string) (bucket RegionBucket, all bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "global") {
		return RegionGlobal, true, nil
	}
	if b, ok := regionCodes[strings.ToLower(s)]; ok {
		return b, false, nil
	}
	for i, label := range regionLabels {
		if strings.EqualFold(label, s) {
			return RegionBucket(i), false, nil
		}
	}
	return RegionOther, false, fmt.Errorf("unknown region %q", s)
}
