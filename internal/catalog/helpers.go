package catalog

import "fmt"

// policyARN builds the ARN of an account-agnostic managed policy.
func policyARN(opts Options, name string) string {
	return fmt.Sprintf("arn:%s:iam::aws:policy/%s", opts.Run.Partition, name)
}

// roleARN builds the ARN of a role in the run's account.
func roleARN(opts Options, name string) string {
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", opts.Run.Partition, opts.Run.AccountID, name)
}

// provisionerDeps returns the dependency list for the first provisioner
// object. In provisioner-only mode the controller resources are not part of
// the descriptor set, so the objects start the graph.
func provisionerDeps(opts Options, controllerID string) []string {
	if opts.ProvisionerOnly {
		return nil
	}
	return []string{controllerID}
}

// mergeValues overlays user values on the catalog defaults. User keys win on
// conflict; nested maps are merged one level at a time.
func mergeValues(defaults, overrides map[string]interface{}) map[string]interface{} {
	if len(overrides) == 0 {
		return defaults
	}
	out := make(map[string]interface{}, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		base, baseOK := existing.(map[string]interface{})
		over, overOK := v.(map[string]interface{})
		if baseOK && overOK {
			out[k] = mergeValues(base, over)
			continue
		}
		out[k] = v
	}
	return out
}
