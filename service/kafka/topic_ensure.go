package kafka

import (
	stderrors "errors"

	"facegram/logger"
	errors "facegram/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EnsureTopic creates topic when it is missing and grows it when it has
// fewer partitions than asked for. Kafka cannot shrink a topic.
func EnsureTopic(admin sarama.ClusterAdmin, topic string, partitions int32, rf int16) error {
	descs, err := admin.DescribeTopics([]string{topic})
	if err != nil {
		return errors.WrapMsg(err, "describe topic", "topic", topic)
	}
	exists := len(descs) == 1 && descs[0].Err == sarama.ErrNoError

	if !exists {
		minISR := "1"
		if rf >= 3 {
			minISR = "2"
		}
		td := &sarama.TopicDetail{
			NumPartitions:     partitions,
			ReplicationFactor: rf,
			ConfigEntries: map[string]*string{
				"cleanup.policy":                 strPtr("delete"),
				"min.insync.replicas":            strPtr(minISR),
				"unclean.leader.election.enable": strPtr("false"),
				"compression.type":               strPtr("producer"),
			},
		}
		if err := admin.CreateTopic(topic, td, false); err != nil {
			var te *sarama.TopicError
			if (stderrors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) || stderrors.Is(err, sarama.ErrTopicAlreadyExists) {
				logger.Info("topic exists (race)", zap.String("topic", topic))
				return nil
			}
			return errors.WrapMsg(err, "create topic", "topic", topic)
		}
		logger.Info("topic created", zap.String("topic", topic), zap.Int32("partitions", partitions), zap.Int16("rf", rf))
		return nil
	}

	cur := int32(len(descs[0].Partitions))
	if partitions > cur {
		if err := admin.CreatePartitions(topic, partitions, nil, false); err != nil {
			return errors.WrapMsg(err, "expand partitions", "topic", topic, "from", cur, "to", partitions)
		}
		logger.Info("topic partitions expanded", zap.String("topic", topic), zap.Int32("from", cur), zap.Int32("to", partitions))
		return nil
	}
	logger.Debug("topic exists", zap.String("topic", topic), zap.Int32("partitions", cur))
	return nil
}

func strPtr(s string) *string { return &s }
