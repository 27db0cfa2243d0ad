package packet

// migrations maps a source version to the function that upgrades a
// raw packet (decoded as a generic map so unknown data_fields survive
// untouched) from that version to the next one. Upgrade walks this
// chain until it reaches CurrentVersion, so adding a new version only
// ever means appending one entry here.
var migrations = map[string]func(map[string]interface{}) map[string]interface{}{
	"0.1": upgradeFrom01,
	"0.2": upgradeFrom02,
}

// versionOrder lists every version this build knows how to upgrade
// from, oldest first, ending at CurrentVersion.
var versionOrder = []string{"0.1", "0.2", "0.3"}

// Upgrade brings a decoded packet up to CurrentVersion. It is
// idempotent: calling it on an already-current packet (or one whose
// version string isn't recognized, treated as current) is a no-op
// that returns the input unchanged plus the current version stamp.
func Upgrade(raw map[string]interface{}, fromVersion string) (map[string]interface{}, error) {
	if fromVersion == "" {
		fromVersion = CurrentVersion
	}

	idx := indexOf(versionOrder, fromVersion)
	if idx < 0 {
		// Unknown version: assume current rather than fail, the
		// original implementation's stance for forward-compat.
		raw["version"] = CurrentVersion
		return raw, nil
	}

	for i := idx; i < len(versionOrder)-1; i++ {
		v := versionOrder[i]
		if fn, ok := migrations[v]; ok {
			raw = fn(raw)
		}
	}
	raw["version"] = CurrentVersion
	return raw, nil
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

// upgradeFrom01 migrates 0.1's flat "prompt" field (no Content
// wrapper existed yet) into 0.2's content.original_prompt, and fills
// the status block 0.2 introduced.
func upgradeFrom01(raw map[string]interface{}) map[string]interface{} {
	if prompt, ok := raw["prompt"]; ok {
		content, _ := raw["content"].(map[string]interface{})
		if content == nil {
			content = map[string]interface{}{}
		}
		if _, has := content["original_prompt"]; !has {
			content["original_prompt"] = prompt
		}
		raw["content"] = content
		delete(raw, "prompt")
	}
	if _, ok := raw["status"]; !ok {
		raw["status"] = map[string]interface{}{"state": string(StateInitialized), "finalized": false}
	}
	return raw
}

// upgradeFrom02 migrates 0.2's "tool_state" key (renamed to
// "tool_routing_state" in 0.3) and introduces the governance block
// with safety defaults.
func upgradeFrom02(raw map[string]interface{}) map[string]interface{} {
	if v, ok := raw["tool_state"]; ok {
		raw["tool_routing_state"] = v
		delete(raw, "tool_state")
	}
	if _, ok := raw["governance"]; !ok {
		raw["governance"] = map[string]interface{}{
			"safety": map[string]interface{}{"execution_allowed": false, "dry_run": true},
		}
	}
	return raw
}
