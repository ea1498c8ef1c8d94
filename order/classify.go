package order

import (
	"strconv"
	"strings"
)

// Kind is the client-order-id-derived order category.
type Kind string

const (
	KindTP    Kind = "TP"
	KindSL    Kind = "SL"
	KindFT    Kind = "FT"
	KindTW    Kind = "TW"
	KindOther Kind = "OTHER"
)

// Category is the classification result for one client order id (C1 output).
type Category struct {
	Kind        Kind
	Level       *int   // parsed digits for TP<n>/SL<n>; nil for the ladder umbrella or no level
	TimeFrame   string // parsed from TW_<frame>
	Source      string // 止盈/止损/追踪止损/其他
	TitleSuffix string
}

// IsStopLike reports whether the category belongs to the stop-like branch
// (TP/SL/FT/TW), which is routed differently from general orders in the
// aggregator.
func (c Category) IsStopLike() bool {
	switch c.Kind {
	case KindTP, KindSL, KindFT, KindTW:
		return true
	default:
		return false
	}
}

// Classify derives an order's category from its client-order-id prefix.
// Prefixes are tested in priority order and the first match wins:
//
//  1. TW_<frame> -> time-window trailing stop
//  2. TP[<n>]    -> take-profit ladder
//  3. SL[<n>]    -> hard stop-loss ladder
//  4. FT         -> trailing-stop-on-trade
//  5. otherwise  -> OTHER
func Classify(clientOrderID string) Category {
	id := strings.ToUpper(strings.TrimSpace(clientOrderID))

	switch {
	case strings.HasPrefix(id, "TW_"):
		frame := id[len("TW_"):]
		if idx := strings.IndexAny(frame, "-_ "); idx >= 0 {
			frame = frame[:idx]
		}
		return Category{
			Kind:        KindTW,
			TimeFrame:   frame,
			Source:      "追踪止损",
			TitleSuffix: frame + " 时间周期止损单",
		}
	case strings.HasPrefix(id, "TP"):
		level := parseLevel(id[len("TP"):])
		if level == nil {
			return Category{Kind: KindTP, Source: "止盈", TitleSuffix: "止盈"}
		}
		return Category{
			Kind:        KindTP,
			Level:       level,
			Source:      "止盈",
			TitleSuffix: "移动止损第" + strconv.Itoa(*level) + "档",
		}
	case strings.HasPrefix(id, "SL"):
		level := parseLevel(id[len("SL"):])
		if level == nil {
			return Category{Kind: KindSL, Source: "止损", TitleSuffix: "硬止损单"}
		}
		return Category{
			Kind:        KindSL,
			Level:       level,
			Source:      "止损",
			TitleSuffix: "硬止损第" + strconv.Itoa(*level) + "档",
		}
	case strings.HasPrefix(id, "FT"):
		return Category{Kind: KindFT, Source: "追踪止损", TitleSuffix: "跟踪交易止损"}
	default:
		return Category{Kind: KindOther, Source: "其他", TitleSuffix: "其他"}
	}
}

// parseLevel reads a leading run of digits as a ladder level; returns nil if
// rest is empty (the bare "TP"/"SL" umbrella case) or not numeric.
func parseLevel(rest string) *int {
	if rest == "" {
		return nil
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return nil
	}
	return &n
}

// Title builds the "<symbol>-<suffix>" card header used by life-cycle and
// fill notifications.
func Title(symbol string, cat Category) string {
	return symbol + "-" + cat.TitleSuffix
}
