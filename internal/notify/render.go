package notify

import "strings"

// Render substitutes every {key} token in the template with its value.
// Substitution is a single global pass per token, order-independent, with no
// escaping, loops, or conditionals. Tokens without a supplied value are left
// in place untouched rather than blanked.
func Render(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// JobVars builds the standard substitution set used by SMS and email
// templates.
func JobVars(customerName, deviceMake, deviceModel, priceTotal, trackingLink, jobRef string) map[string]string {
	return map[string]string{
		"customer_name": customerName,
		"device_make":   deviceMake,
		"device_model":  deviceModel,
		"price_total":   priceTotal,
		"tracking_link": trackingLink,
		"job_ref":       jobRef,
	}
}
