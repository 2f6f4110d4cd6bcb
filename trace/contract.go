package trace

// Messaging 语义属性键
const (
	AttrMessagingSystem        = "messaging.system"
	AttrMessagingDestination   = "messaging.destination"
	AttrMessagingOperation     = "messaging.operation"
	AttrMessagingConsumerGroup = "messaging.consumer.group"
)

// 接入的消息系统
const (
	MessagingSystemNATS  = "nats"
	MessagingSystemKafka = "kafka"
)

// 消息操作
const (
	MessagingOperationConsume = "consume"
	MessagingOperationProcess = "process"
)

// MessagingTraceRelation 消费端 Span 与上游消息 Span 的关系
type MessagingTraceRelation string

const (
	// MessagingTraceRelationLink 以 Span Link 关联上游（默认）
	MessagingTraceRelationLink MessagingTraceRelation = "link"
	// MessagingTraceRelationChildOf 作为上游的子 Span，串成单条 Trace
	MessagingTraceRelationChildOf MessagingTraceRelation = "child_of"
)

// SpanNameMQConsume 返回消费 Span 的标准名称
func SpanNameMQConsume(destination string) string {
	if destination == "" {
		return "mq.consume"
	}
	return "mq.consume " + destination
}
