// eventctl 向领域事件主题投递一条事件，用于本地联调通知监听器。
//
//	eventctl -type project.created -data '{"project_id":"p1","project_name":"Atlas","owner_id":"u1"}'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"OpenCollab/internal/config"
	"OpenCollab/internal/modules/notification/infrastructure/mq"
	"OpenCollab/internal/modules/notification/infrastructure/mq/kafka"
	"OpenCollab/internal/modules/notification/interface/event"
	"OpenCollab/pkg/util"
)

func main() {
	conf := config.GetConfig().KafkaConfig

	typ := flag.String("type", "", "domain event type, e.g. project.created")
	data := flag.String("data", "{}", "event data as a JSON object")
	key := flag.String("key", "", "partition key")
	brokers := flag.String("brokers", strings.Join(conf.Brokers, ","), "comma separated kafka brokers")
	topic := flag.String("topic", conf.DomainEventTopic, "target topic")
	flag.Parse()

	if err := run(*typ, *data, *key, *brokers, *topic, conf.ClientID); err != nil {
		fmt.Fprintln(os.Stderr, "eventctl:", err)
		os.Exit(1)
	}
}

func run(typ, data, key, brokers, topic, clientID string) error {
	if strings.TrimSpace(typ) == "" {
		return fmt.Errorf("-type is required")
	}
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("-data is not valid JSON")
	}
	value, err := json.Marshal(event.Envelope{
		Id:         util.GenerateUUID(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	if err != nil {
		return err
	}

	var list []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			list = append(list, b)
		}
	}
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{Brokers: list, ClientID: clientID})
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := pub.Publish(ctx, mq.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: map[string]string{"event-type": typ},
	})
	if err != nil {
		return err
	}
	fmt.Printf("published %s to %s partition=%d offset=%d\n", typ, topic, res.Partition, res.Offset)
	return nil
}
