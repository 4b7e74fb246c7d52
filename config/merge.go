package config

// mergeConfigs merges override configuration into base. Zero values in
// override leave base untouched.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.Workspace != "" {
		result.Workspace = override.Workspace
	}

	result.Server = mergeServer(result.Server, override.Server)
	result.Channel = mergeChannel(result.Channel, override.Channel)
	result.Chat = mergeChat(result.Chat, override.Chat)
	result.Extensions = mergeExtensions(result.Extensions, override.Extensions)

	result.Sources = append(append([]string(nil), base.Sources...), override.Sources...)

	return &result
}

func mergeServer(base, override ServerConfig) ServerConfig {
	result := base
	if override.BaseURL != "" {
		result.BaseURL = override.BaseURL
	}
	if override.ProgressPath != "" {
		result.ProgressPath = override.ProgressPath
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	return result
}

func mergeChannel(base, override ChannelConfig) ChannelConfig {
	result := base
	if override.ReconnectDelay != 0 {
		result.ReconnectDelay = override.ReconnectDelay
	}
	if override.MaxAttempts != 0 {
		result.MaxAttempts = override.MaxAttempts
	}
	if override.PingInterval != 0 {
		result.PingInterval = override.PingInterval
	}
	if override.DialTimeout != 0 {
		result.DialTimeout = override.DialTimeout
	}
	return result
}

func mergeChat(base, override ChatConfig) ChatConfig {
	result := base
	if override.Path != "" {
		result.Path = override.Path
	}
	if override.ReadBufferSize != 0 {
		result.ReadBufferSize = override.ReadBufferSize
	}
	if override.MaxLineBytes != 0 {
		result.MaxLineBytes = override.MaxLineBytes
	}
	return result
}

// mergeExtensions merges one level deep: sections present in both sides
// have their keys merged, anything else is replaced.
func mergeExtensions(base, override map[string]interface{}) map[string]interface{} {
	if override == nil {
		return base
	}
	result := make(map[string]interface{}, len(base)+len(override))
	for key, value := range base {
		result[key] = value
	}
	for key, value := range override {
		if baseMap, ok := result[key].(map[string]interface{}); ok {
			if overrideMap, ok := value.(map[string]interface{}); ok {
				merged := make(map[string]interface{}, len(baseMap)+len(overrideMap))
				for k, v := range baseMap {
					merged[k] = v
				}
				for k, v := range overrideMap {
					merged[k] = v
				}
				result[key] = merged
				continue
			}
		}
		result[key] = value
	}
	return result
}
