package actionable

import (
	"fmt"

	"call-analytics-go/internal/aggregator"
	"call-analytics-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

var coaching = map[types.Dimension]string{
	types.DimensionTone:            "Coach on empathy statements and acknowledging caller frustration",
	types.DimensionProfessionalism: "Review call etiquette and courteous language guidelines",
	types.DimensionResolution:      "Pair with a senior agent on first-call resolution playbooks",
	types.DimensionResponse:        "Practice concise, on-topic answers with the knowledge base",
}

// Generate turns an agent report into a single coaching card. Declining
// dimensions win over merely weak ones.
func Generate(rep aggregator.Report) ActionCard {
	if rep.TotalCalls == 0 {
		return ActionCard{
			Insight: fmt.Sprintf("No eligible calls for %s yet", rep.AgentName),
			Action:  "Monitor and collect more data",
			Impact:  "Low immediate intervention",
		}
	}

	for _, d := range types.Dimensions {
		if st, ok := rep.Dimensions[d]; ok && st.Trend == aggregator.TrendDeclining {
			return ActionCard{
				Insight: fmt.Sprintf("%s scores for %s are declining (avg %.1f)", d, rep.AgentName, st.Average),
				Action:  coaching[d],
				Impact:  "Stop the slide before it shows up in customer satisfaction",
			}
		}
	}

	weakest := types.Dimension("")
	lowest := float64(types.MaxScore) + 1
	for _, d := range types.Dimensions {
		if st, ok := rep.Dimensions[d]; ok && st.Average < lowest {
			lowest = st.Average
			weakest = d
		}
	}
	if weakest != "" && lowest < 7.0 {
		return ActionCard{
			Insight: fmt.Sprintf("Weakest dimension for %s is %s (avg %.1f)", rep.AgentName, weakest, lowest),
			Action:  coaching[weakest],
			Impact:  "Lift overall quality score and rating",
		}
	}
	return ActionCard{
		Insight: fmt.Sprintf("%s is rated %s across %d calls", rep.AgentName, rep.Rating, rep.TotalCalls),
		Action:  "Share call examples with the team as reference material",
		Impact:  "Spread good practice",
	}
}
