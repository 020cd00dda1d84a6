package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统、内置场景）
// 功能：定义场景数据输入路径的配置结构
// 说明：优先级为 File > Builtin > MongoDB
type InputPath struct {
	DB      string `yaml:"db,omitempty"`      // 数据库名
	Col     string `yaml:"col,omitempty"`     // 集合名
	Name    string `yaml:"name,omitempty"`    // 场景名（MongoDB中按name查找）
	File    string `yaml:"file,omitempty"`    // 场景文件路径（YAML）
	Builtin string `yaml:"builtin,omitempty"` // 内置场景名
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// Input 指定模拟器所有输入数据的配置项
type Input struct {
	URI   string    `yaml:"uri,omitempty"` // MongoDB连接字符串
	Scene InputPath `yaml:"scene"`         // 场景
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：Interval为理想帧间隔（毫秒），物理量以60fps为基准按实际帧间隔缩放
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数，0表示不限
	Interval float64 `yaml:"interval"` // 每步的时间间隔（毫秒）
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
type Control struct {
	Step     ControlStep `yaml:"step"`
	Realtime bool        `yaml:"realtime,omitempty"` // 按墙上时钟实时运行，否则以固定步长尽快运行
	Params   *Params     `yaml:"params,omitempty"`   // 覆盖默认调参常量
}

// MQTTOutput 帧数据MQTT发布配置
type MQTTOutput struct {
	Broker   string `yaml:"broker"`              // 例如tcp://localhost:1883
	Topic    string `yaml:"topic"`               // 主题前缀，帧发布到{topic}/frames
	ClientID string `yaml:"client_id,omitempty"` // 客户端ID
	QoS      byte   `yaml:"qos,omitempty"`       // 服务质量等级
	Every    int32  `yaml:"every,omitempty"`     // 每隔多少步发布一次，默认1
}

// MongoOutput 轨迹写入MongoDB的配置
type MongoOutput struct {
	DB    string `yaml:"db"`              // 数据库名
	Col   string `yaml:"col"`             // 集合名
	Batch int    `yaml:"batch,omitempty"` // 批量写入帧数，默认100
}

// GetDb 获取数据库名
func (o MongoOutput) GetDb() string {
	return o.DB
}

// GetColl 获取集合名
func (o MongoOutput) GetColl() string {
	return o.Col
}

// Output 输出配置
type Output struct {
	MQTT  *MQTTOutput  `yaml:"mqtt,omitempty"`
	Mongo *MongoOutput `yaml:"mongo,omitempty"`
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
type Config struct {
	Input   Input   `yaml:"input"`            // 输入
	Control Control `yaml:"control"`          // 模拟过程控制
	Output  Output  `yaml:"output,omitempty"` // 输出
}
