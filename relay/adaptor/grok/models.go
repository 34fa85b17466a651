package grok

import (
	"sort"

	"github.com/Laisky/errors/v2"
)

// Modality selects the processor family a model is served by.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
)

// Tier is the lowest account tier able to run a model.
type Tier string

const (
	TierBasic Tier = "basic"
	TierSuper Tier = "super"
)

// Cost is the relative quota weight of one request.
type Cost string

const (
	CostLow  Cost = "low"
	CostHigh Cost = "high"
)

// ModelInfo maps a public model id onto the upstream web API parameters.
type ModelInfo struct {
	ID          string
	DisplayName string
	// GrokModel and ModelMode are sent as modelName and modelMode.
	GrokModel string
	ModelMode string
	// RateLimitModel is the upstream bucket the request is counted against.
	RateLimitModel string
	Modality       Modality
	Tier           Tier
	Cost           Cost
}

var models = map[string]ModelInfo{
	"grok-3":          {DisplayName: "Grok 3", GrokModel: "grok-3", ModelMode: "MODEL_MODE_GROK_3", RateLimitModel: "grok-3"},
	"grok-3-mini":     {DisplayName: "Grok 3 Mini", GrokModel: "grok-3", ModelMode: "MODEL_MODE_GROK_3_MINI_THINKING", RateLimitModel: "grok-3"},
	"grok-3-thinking": {DisplayName: "Grok 3 Thinking", GrokModel: "grok-3", ModelMode: "MODEL_MODE_GROK_3_THINKING", RateLimitModel: "grok-3"},
	"grok-4":          {DisplayName: "Grok 4", GrokModel: "grok-4", ModelMode: "MODEL_MODE_GROK_4", RateLimitModel: "grok-4"},
	"grok-4-mini":     {DisplayName: "Grok 4 Mini", GrokModel: "grok-4-mini-thinking-tahoe", ModelMode: "MODEL_MODE_GROK_4_MINI_THINKING", RateLimitModel: "grok-4-mini-thinking-tahoe"},
	"grok-4-thinking": {DisplayName: "Grok 4 Thinking", GrokModel: "grok-4", ModelMode: "MODEL_MODE_GROK_4_THINKING", RateLimitModel: "grok-4"},
	"grok-4-heavy":    {DisplayName: "Grok 4 Heavy", GrokModel: "grok-4", ModelMode: "MODEL_MODE_HEAVY", RateLimitModel: "grok-4-heavy", Tier: TierSuper, Cost: CostHigh},
	"grok-4.1-fast":   {DisplayName: "Grok 4.1 Fast", GrokModel: "grok-4-1-thinking-1129", ModelMode: "MODEL_MODE_FAST", RateLimitModel: "grok-4-1-thinking-1129"},
	"grok-4.1-expert": {DisplayName: "Grok 4.1 Expert", GrokModel: "grok-4-1-thinking-1129", ModelMode: "MODEL_MODE_EXPERT", RateLimitModel: "grok-4-1-thinking-1129", Cost: CostHigh},
	"grok-4.20-beta":  {DisplayName: "Grok 4.20 Beta", GrokModel: "grok-420", ModelMode: "MODEL_MODE_GROK_420", RateLimitModel: "grok-420"},

	"grok-imagine-1.0":       {DisplayName: "Grok Imagine", GrokModel: "grok-3", ModelMode: "MODEL_MODE_FAST", RateLimitModel: "grok-3", Modality: ModalityImage},
	"grok-imagine-1.0-video": {DisplayName: "Grok Imagine Video", GrokModel: "grok-3", ModelMode: "MODEL_MODE_FAST", RateLimitModel: "grok-3", Modality: ModalityVideo, Tier: TierSuper},
}

func init() {
	for id, m := range models {
		m.ID = id
		if m.Modality == "" {
			m.Modality = ModalityText
		}
		if m.Tier == "" {
			m.Tier = TierBasic
		}
		if m.Cost == "" {
			m.Cost = CostLow
		}
		models[id] = m
	}
}

// LookupModel returns the catalog entry for id.
func LookupModel(id string) (ModelInfo, bool) {
	m, ok := models[id]
	return m, ok
}

// ToGrok returns the upstream model name and mode for id.
func ToGrok(id string) (grokModel, modelMode string, err error) {
	m, ok := models[id]
	if !ok {
		return "", "", errors.Errorf("unknown model %q", id)
	}
	return m.GrokModel, m.ModelMode, nil
}

// ModelList returns every model sorted by id.
func ModelList() []ModelInfo {
	list := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
