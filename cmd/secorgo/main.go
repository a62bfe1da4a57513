// Copyright 2015-2018 trivago N.V.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command secorgo consumes one or more Kafka topics, groups records into
// logical partitions, stages them on local disk, and uploads closed
// files to an object store once a CommitPolicy trigger fires,
// advancing a durable OffsetStore only after every upload in the batch
// succeeds. Grounded on the teacher's root main.go bootstrap sequence:
// parse flags, read config, configure the runtime, start the metrics
// server, run until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"

	"github.com/trivago/secorgo/blobstore/s3store"
	"github.com/trivago/secorgo/codec"
	"github.com/trivago/secorgo/commitpolicy"
	"github.com/trivago/secorgo/config"
	"github.com/trivago/secorgo/consumerloop"
	"github.com/trivago/secorgo/kafkaio"
	seclog "github.com/trivago/secorgo/log"
	"github.com/trivago/secorgo/metrics"
	"github.com/trivago/secorgo/offsetstore/kafkaoffsets"
	"github.com/trivago/secorgo/parser"
	"github.com/trivago/secorgo/registry"
	"github.com/trivago/secorgo/uploader"

	"github.com/Shopify/sarama"
)

var (
	flagConfigFile = flag.String("config", "", "Path to the secor.yaml configuration file")
	flagVersion    = flag.Bool("version", false, "Print the version and exit")
)

const version = "0.1.0"

func main() {
	flag.Parse()

	if *flagVersion {
		fmt.Printf("secorgo v%s\n", version)
		return
	}

	if *flagConfigFile == "" {
		fmt.Fprintln(os.Stderr, "secorgo: -config is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*flagConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "secorgo: %v\n", err)
		os.Exit(1)
	}

	logger := seclog.New(cfg.GetString("secor.log.level", "info"))

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("secorgo: fatal error")
	}
}

func run(cfg *config.Config, logger logrus.FieldLogger) error {
	topicFilter, err := cfg.MustGetString("secor.kafka.topic.filter")
	if err != nil {
		return err
	}
	localPath, err := cfg.MustGetString("secor.local.path")
	if err != nil {
		return err
	}
	group := cfg.GetString("secor.kafka.group", "secorgo")

	if addr := cfg.GetString("secor.metrics.listen.address", ":9090"); addr != "" {
		stopMetrics := metrics.StartServer(addr, 3*time.Second, logger)
		defer stopMetrics()
	}

	codecFor := func(string) (codec.Codec, error) {
		return codec.New(cfg.GetString("secor.file.reader.writer.factory", "delimited"), codec.Options{
			WriterDelimiter: '\n',
			HasWriterDelim:  true,
			Compression:     codec.Compression(cfg.GetString("secor.compression.codec", "none")),
		})
	}
	reg := registry.New(localPath, codecFor)

	policy := commitpolicy.New(commitpolicy.Config{
		MaxFileSizeBytes: cfg.GetInt64("secor.max.file.size.bytes", 100*1024*1024),
		MaxFileAge:       cfg.GetDuration("secor.max.file.age", 10*time.Minute),
		MaxFileRecords:   cfg.GetInt64("secor.max.file.records", 0),
	})

	store, err := s3store.New(s3store.Config{
		Region: cfg.GetString("secor.aws.region", "us-east-1"),
	})
	if err != nil {
		return err
	}

	saramaClient, err := sarama.NewClient(cfg.GetStringSlice("secor.kafka.seed.broker.host", nil), sarama.NewConfig())
	if err != nil {
		return err
	}
	defer saramaClient.Close()

	offsets, err := kafkaoffsets.New(saramaClient, group)
	if err != nil {
		return err
	}
	defer offsets.Close()

	up := uploader.New(uploader.Config{Group: group}, reg, store, offsets, logger)

	messageParser, err := parser.New(cfg.GetString("secor.message.parser.class", "dailyoffset"), parser.Options{
		TimestampField:   cfg.GetString("secor.message.timestamp.name", ""),
		TimestampLayout:  cfg.GetString("secor.message.timestamp.format", "2006-01-02"),
		PrefixEnable:     cfg.GetBool("secor.partition.prefix.enable", false),
		PrefixIdentifier: cfg.GetString("secor.partition.prefix.identifier", ""),
		PrefixMapping:    cfg.GetStringMap("secor.partition.prefix.mapping", nil),
	})
	if err != nil {
		return err
	}

	consumer, err := kafkaio.New(kafkaio.Config{
		Brokers: cfg.GetStringSlice("secor.kafka.seed.broker.host", nil),
		Group:   group,
		Topics:  []string{topicFilter},
	})
	if err != nil {
		return err
	}

	loop := consumerloop.New(consumerloop.Config{
		Group:                  group,
		RemoteRoot:             cfg.GetString("secor.s3.path", "s3://"+cfg.GetString("secor.s3.bucket", "")),
		Extension:              ".log",
		FallbackPartition:      []string{"_parser_error"},
		ChannelIdentifierField: cfg.GetString("secor.partition.message.channel.identifier", ""),
	}, consumer, messageParser, reg, policy, up, offsets, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("secorgo: shutting down")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	err = <-errCh
	if err != nil && err != context.Canceled {
		return err
	}
	return consumer.Close()
}
