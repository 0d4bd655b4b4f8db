// Package category 把调用方传入的自由文本类别映射到固定的知识分区（数据表）。
//
// 分区集合在编译期确定，表名从不由请求内容拼接而来。
package category

// Shape 描述分区的行结构。
type Shape int

const (
	// ShapeGeneral 对应 (question, answer) 结构的通用知识表。
	ShapeGeneral Shape = iota
	// ShapeTopic 对应 (key_name, content, updated_at) 结构的主题知识表。
	ShapeTopic
)

func (s Shape) String() string {
	switch s {
	case ShapeGeneral:
		return "general"
	case ShapeTopic:
		return "topic"
	default:
		return "unknown"
	}
}

// Partition 是一个知识分区的类型化描述。
type Partition struct {
	Name  string
	Table string
	Shape Shape
}

// DefaultCategory 是请求未携带 category 时使用的类别。
const DefaultCategory = "general"

var (
	General   = Partition{Name: "general", Table: "knowledge", Shape: ShapeGeneral}
	Animals   = Partition{Name: "animals", Table: "animaux", Shape: ShapeTopic}
	History   = Partition{Name: "history", Table: "histoire", Shape: ShapeTopic}
	Geography = Partition{Name: "geography", Table: "geographie", Shape: ShapeTopic}
	Science   = Partition{Name: "science", Table: "sciences", Shape: ShapeTopic}
	Sports    = Partition{Name: "sports", Table: "sports", Shape: ShapeTopic}
)

// mapping 同时接受英文和法文的类别名。
var mapping = map[string]Partition{
	"general":    General,
	"animals":    Animals,
	"animaux":    Animals,
	"history":    History,
	"histoire":   History,
	"geography":  Geography,
	"geographie": Geography,
	"géographie": Geography,
	"science":    Science,
	"sciences":   Science,
	"sports":     Sports,
	"sport":      Sports,
}

// Resolve 返回 category 对应的分区。未知类别一律回落到 General，从不失败。
func Resolve(category string) Partition {
	if category == "" {
		category = DefaultCategory
	}
	if p, ok := mapping[category]; ok {
		return p
	}
	return General
}

// Known 报告 category 是否在固定映射中。
func Known(category string) bool {
	_, ok := mapping[category]
	return ok
}

// All 返回所有不重复的分区，General 排在第一位。
func All() []Partition {
	return []Partition{General, Animals, History, Geography, Science, Sports}
}
