package catalog

// Builtins returns the experiment definitions that ship with faultctl. The
// manifests follow the chaos-mesh v1alpha1 shapes.
func Builtins() []Experiment {
	return []Experiment{
		{
			Name:        "Pod Faults",
			Description: "Simulates pod-level failures like kills, failures, and container-specific issues.",
			Kind:        "PodChaos",
			ObjectName:  "pod-failure-example",
			Namespace:   "chaos-mesh",
			Fields: []FieldSpec{
				{Key: "action", Label: "Action", Kind: FieldEnumerated, Options: []string{"pod-failure", "pod-kill", "container-kill"}, Default: "pod-failure"},
				{Key: "mode", Label: "Mode", Kind: FieldEnumerated, Options: []string{"one", "all", "fixed", "fixed-percent", "random-max-percent"}, Default: "one"},
				{Key: "duration", Label: "Duration", Default: "30s"},
				{Key: "selector.labelSelectors.'app.kubernetes.io/component'", Label: "Target component", Default: "tikv"},
			},
		},
		{
			Name:        "Network Faults",
			Description: "Simulates network issues like latency, packet loss, and corruption.",
			Kind:        "NetworkChaos",
			ObjectName:  "delay-example",
			Namespace:   "default",
			Fields: []FieldSpec{
				{Key: "action", Label: "Action", Kind: FieldEnumerated, Options: []string{"delay", "loss", "duplicate", "corrupt", "partition"}, Default: "delay"},
				{Key: "mode", Label: "Mode", Kind: FieldEnumerated, Options: []string{"one", "all"}, Default: "one"},
				{Key: "selector.labelSelectors.app", Label: "Target app", Default: "web-show"},
				{Key: "delay.latency", Label: "Latency", Default: "10ms"},
				{Key: "delay.correlation", Label: "Correlation", Default: "100"},
				{Key: "delay.jitter", Label: "Jitter", Default: "0ms"},
			},
		},
		{
			Name:        "Stress Scenarios",
			Description: "Injects CPU or memory stress on targeted pods.",
			Kind:        "StressChaos",
			ObjectName:  "cpu-stress-example",
			Namespace:   "default",
			Fields: []FieldSpec{
				{Key: "mode", Label: "Mode", Kind: FieldEnumerated, Options: []string{"one", "all"}, Default: "one"},
				{Key: "selector.labelSelectors.app", Label: "Target app", Default: "cpu-burner"},
				{Key: "stressors.cpu.workers", Label: "CPU workers", Default: "2"},
				{Key: "stressors.cpu.load", Label: "CPU load %", Default: "80"},
			},
		},
	}
}
