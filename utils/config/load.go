package config

import (
	"encoding/base64"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	EnvMongoURI   = "LANESIM_MONGO_URI"   // 覆盖input.uri
	EnvMQTTBroker = "LANESIM_MQTT_BROKER" // 覆盖output.mqtt.broker
)

// Parse 严格解析YAML配置，出现未知字段时报错
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, errors.Wrap(err, "config file load err")
	}
	return c, nil
}

// Load 从文件或Base64编码的数据读取配置
// 参数：path-配置文件路径，data-Base64编码的配置，二者取其一且path优先
func Load(path, data string) (Config, error) {
	var file []byte
	var err error
	switch {
	case path != "":
		if file, err = os.ReadFile(path); err != nil {
			return Config{}, errors.Wrap(err, "config file load err")
		}
	case data != "":
		if file, err = base64.StdEncoding.DecodeString(data); err != nil {
			return Config{}, errors.Wrap(err, "config data load err")
		}
	default:
		return Config{}, errors.New("config file or config data must be specified")
	}
	return Parse(file)
}

// ApplyEnv 用环境变量覆盖连接地址
func (c *Config) ApplyEnv() {
	if uri := os.Getenv(EnvMongoURI); uri != "" {
		c.Input.URI = uri
	}
	if broker := os.Getenv(EnvMQTTBroker); broker != "" {
		if c.Output.MQTT == nil {
			c.Output.MQTT = &MQTTOutput{Topic: "lanesim"}
		}
		c.Output.MQTT.Broker = broker
	}
}
