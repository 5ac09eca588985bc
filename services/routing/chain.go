package routing

import "github.com/rkbansal/postify/services/providers"

// PreferredFreeModels are tried first, in this order, when free and healthy
var PreferredFreeModels = []string{
	"google/gemma-7b-it:free",
	"meta-llama/llama-3-8b-instruct:free",
	"mistralai/mistral-7b-instruct:free",
	"microsoft/phi-3-mini-128k-instruct:free",
	"huggingfaceh4/zephyr-7b-beta:free",
	"openchat/openchat-7b:free",
	"nousresearch/nous-hermes-llama2-13b:free",
}

// orderChain ranks free models: preferred healthy ones, then other healthy
// ones, then unhealthy ones, then the default model. The result is
// deduplicated and never empty.
func orderChain(free []providers.ModelDescriptor, preferred []string, defaultModel string, healthy func(string) bool) []string {
	if len(free) == 0 {
		return []string{defaultModel}
	}

	available := make(map[string]bool, len(free))
	for _, m := range free {
		available[m.ID] = true
	}

	chain := make([]string, 0, len(free)+1)
	seen := make(map[string]bool, len(free)+1)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		chain = append(chain, id)
	}

	for _, id := range preferred {
		if available[id] && healthy(id) {
			add(id)
		}
	}
	for _, m := range free {
		if healthy(m.ID) {
			add(m.ID)
		}
	}
	for _, m := range free {
		add(m.ID)
	}
	add(defaultModel)

	if len(chain) == 0 {
		return []string{defaultModel}
	}
	return chain
}
