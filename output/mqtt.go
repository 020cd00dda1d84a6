package output

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
)

// MQTTSink 通过MQTT发布帧数据
// 功能：每Every步把帧编码为JSON发布到{topic}/frames，供外部渲染端订阅
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
	every  int32
}

// NewMQTTSink 连接MQTT代理并创建输出
// 参数：c-MQTT输出配置
// 返回：输出实例；连接失败返回错误
func NewMQTTSink(c config.MQTTOutput) (*MQTTSink, error) {
	clientID := c.ClientID
	if clientID == "" {
		clientID = "lanesim-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.Broker)
	opts.SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "failed to connect mqtt broker %s", c.Broker)
	}
	log.Infof("connected to mqtt broker %s as %s", c.Broker, clientID)
	return NewMQTTSinkWithClient(client, c.Topic, c.QoS, c.Every), nil
}

// NewMQTTSinkWithClient 使用已连接的客户端创建输出
// 参数：every-发布间隔步数，<=0时每步发布
func NewMQTTSinkWithClient(client mqtt.Client, topic string, qos byte, every int32) *MQTTSink {
	return &MQTTSink{
		client: client,
		topic:  topic + "/frames",
		qos:    qos,
		every:  max(every, 1),
	}
}

// Topic 帧数据的发布主题
func (s *MQTTSink) Topic() string {
	return s.topic
}

func (s *MQTTSink) Publish(_ context.Context, f Frame) error {
	if f.Step%s.every != 0 {
		return nil
	}
	payload, err := f.Encode()
	if err != nil {
		return errors.Wrapf(err, "failed to encode frame %d", f.Step)
	}
	token := s.client.Publish(s.topic, s.qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "failed to publish frame %d to %s", f.Step, s.topic)
	}
	return nil
}

func (s *MQTTSink) Close(context.Context) error {
	s.client.Disconnect(250)
	return nil
}
