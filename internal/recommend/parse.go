// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package recommend

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Wire keys used by the tagging and trust producers.
const (
	keyPostID           = "_id"
	keyCreatorID        = "artistId"
	keyTags             = "mlTags"
	keyLabel            = "label"
	keyConfidence       = "confidence"
	keyHistoryTags      = "tags"
	keyHistoryWeight    = "weight"
	keyBotScore         = "bot_score"
	keyBehaviorFeatures = "behavior_features"
	featureBotScore     = "botScore"
	featureFastReply    = "fastReplyPct"
	featureCircadian    = "circadianFlatness"
	featureInterval     = "intervalRegularity"
)

// ParseTags coerces a loosely typed tag structure into Tags.
// Non-list categories, non-object entries and entries without a string label
// are dropped. Missing or non-numeric confidences use defaultConfidence;
// confidences are clipped to [0, 1]. Categories left empty are omitted.
func ParseTags(v any, defaultConfidence float64) Tags {
	raw, ok := v.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}

	tags := make(Tags, len(raw))
	for category, value := range raw {
		list, ok := value.([]any)
		if !ok {
			continue
		}

		parsed := make([]Tag, 0, len(list))
		for _, entry := range list {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			label, ok := obj[keyLabel].(string)
			if !ok {
				continue
			}
			conf, ok := toFloat(obj[keyConfidence])
			if !ok {
				conf = defaultConfidence
			}
			parsed = append(parsed, Tag{Label: label, Confidence: clip01(conf)})
		}

		if len(parsed) > 0 {
			tags[category] = parsed
		}
	}

	if len(tags) == 0 {
		return nil
	}
	return tags
}

// ParseHistory coerces interaction history entries of shape {tags, weight}.
// Entries that are not objects are skipped. A missing or non-numeric weight
// defaults to 1.0.
func ParseHistory(entries []any, defaultConfidence float64) []HistoryEntry {
	history := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		weight, ok := toFloat(obj[keyHistoryWeight])
		if !ok {
			weight = 1.0
		}
		tags := ParseTags(obj[keyHistoryTags], defaultConfidence)
		if len(tags) == 0 {
			continue
		}
		history = append(history, HistoryEntry{Tags: tags, Weight: weight})
	}
	return history
}

// ParseTrust coerces creator behavior statistics keyed by creator ID.
// The bot probability is read from "bot_score", falling back to
// behavior_features.botScore. Anything unreadable is neutral (zero).
func ParseTrust(stats map[string]any) map[string]Trust {
	if len(stats) == 0 {
		return nil
	}

	out := make(map[string]Trust, len(stats))
	for creatorID, value := range stats {
		obj, ok := value.(map[string]any)
		if !ok {
			continue
		}
		features, _ := obj[keyBehaviorFeatures].(map[string]any)

		var t Trust
		if bot, ok := obj[keyBotScore]; ok {
			t.BotScore, _ = toFloat(bot)
		} else {
			t.BotScore, _ = toFloat(features[featureBotScore])
		}
		t.FastReplyPct, _ = toFloat(features[featureFastReply])
		t.CircadianFlatness, _ = toFloat(features[featureCircadian])
		t.IntervalRegularity, _ = toFloat(features[featureInterval])

		out[creatorID] = t
	}
	return out
}

// ParsePost coerces one candidate post object. The raw object is kept so
// responses can echo every field the caller sent.
func ParsePost(obj map[string]any, defaultConfidence float64) Post {
	return Post{
		ID:        toID(obj[keyPostID]),
		CreatorID: toID(obj[keyCreatorID]),
		Tags:      ParseTags(obj[keyTags], defaultConfidence),
		Raw:       obj,
	}
}

// toFloat converts JSON-ish numeric values. NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toID renders identifiers that may arrive as strings, numbers or
// extended-JSON object IDs ({"$oid": "..."}).
func toID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case map[string]any:
		if oid, ok := id["$oid"].(string); ok {
			return oid
		}
	}
	return ""
}

func clip01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
