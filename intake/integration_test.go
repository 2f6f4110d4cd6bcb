//go:build integration

package intake_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ceyewan/bfametrics/bfa"
	"github.com/ceyewan/bfametrics/intake"
	"github.com/ceyewan/bfametrics/metrics"
	"github.com/ceyewan/bfametrics/testkit"
)

func newHandler(t *testing.T, registry metrics.Registry) *intake.Handler {
	t.Helper()
	manager, err := bfa.NewManager(registry)
	require.NoError(t, err)
	h, err := intake.NewHandler(manager, intake.Policy{JobMetrics: true}, intake.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	return h
}

func waitForCount(t *testing.T, registry metrics.Registry, name string, want int64) {
	t.Helper()
	assert.Eventually(t, func() bool {
		snap, err := metrics.Snapshot(context.Background(), registry)
		return err == nil && snap[name] == want
	}, 30*time.Second, 100*time.Millisecond, "counter %s never reached %d", name, want)
}

func TestNATSIntake(t *testing.T) {
	kit := testkit.NewKit(t)
	conn := testkit.NewNATSContainerConnector(t)
	codec, err := intake.NewCodec(intake.CodecMsgpack)
	require.NoError(t, err)

	subject := "bfa.events." + testkit.NewID()
	sub, err := intake.SubscribeNATS(kit.Ctx, conn, intake.NATSConfig{Subject: subject, QueueGroup: "bfa"}, newHandler(t, kit.Registry), codec)
	require.NoError(t, err)

	data, err := codec.Marshal(&intake.Event{Job: "team/proj", Causes: []intake.CauseRecord{{Name: "OOM"}}})
	require.NoError(t, err)

	// request 模式会收到事件 ID 作为回复
	reply, err := conn.GetClient().Request(subject, data, 5*time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, string(reply.Data))

	waitForCount(t, kit.Registry, "jenkins_bfa.job_cause:_:team::proj:_:OOM", 1)

	require.NoError(t, sub.Unsubscribe())
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

func TestKafkaIntake(t *testing.T) {
	kit := testkit.NewKit(t)
	cfg := intake.KafkaConfig{Topic: "bfa-events-" + testkit.NewID(), Group: "bfa-" + testkit.NewID()}
	conn := testkit.NewKafkaContainerConnector(t, append(intake.KafkaClientOpts(cfg), kgo.AllowAutoTopicCreation())...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := intake.ConsumeKafka(ctx, conn, cfg, newHandler(t, kit.Registry), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := &kgo.Record{Topic: cfg.Topic, Value: []byte(`{"causes":[{"name":"Disk full","categories":["infra"]}]}`)}
		require.NoError(t, conn.GetClient().ProduceSync(kit.Ctx, rec).FirstErr())
	}

	waitForCount(t, kit.Registry, "jenkins_bfa.category.infra", 3)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
