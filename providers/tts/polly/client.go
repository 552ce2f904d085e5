// Package polly is the secondary speech synthesis backend, backed by
// Amazon Polly. It is tried when the primary backend fails.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/serenitylab/meditation-pipeline/internal/fault"
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Config configures the Polly client.
type Config struct {
	Region  string
	VoiceID string
	Engine  string
	Timeout time.Duration
}

// Client synthesizes speech via Amazon Polly. The AWS client is resolved
// lazily so constructing the pipeline never requires AWS credentials.
type Client struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

// New returns a client using the AWS default credential chain.
func New(cfg Config) *Client {
	return NewWithClient(cfg, nil)
}

// NewWithClient returns a client with an injected Polly API, used in tests.
func NewWithClient(cfg Config, client synthClient) *Client {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Joanna"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{client: client, cfg: cfg}
}

// Synthesize renders the text as MP3 audio.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	client, err := c.resolveClient()
	if err != nil {
		return nil, err
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(c.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(c.cfg.VoiceID),
	})
	if err != nil {
		return nil, normalizePollyError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, fault.New(fault.KindUpstream, "polly", "synthesis returned no audio stream")
	}
	defer output.AudioStream.Close()
	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, fault.Wrap(fault.KindUpstream, "polly", fmt.Errorf("read audio stream: %w", err))
	}
	if len(audio) == 0 {
		return nil, fault.New(fault.KindUpstream, "polly", "synthesis returned no audio")
	}
	return audio, nil
}

func normalizePollyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fault.FromNetwork("polly", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException":
			return fault.Wrap(fault.KindRateLimit, "polly", err)
		case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException", "MarksNotSupportedForFormatException", "InvalidSampleRateException":
			return fault.Wrap(fault.KindValidation, "polly", err)
		case "UnrecognizedClientException", "InvalidSignatureException":
			return fault.Wrap(fault.KindAuthentication, "polly", err)
		default:
			return fault.Wrap(fault.KindUpstream, "polly", err)
		}
	}
	return fault.FromNetwork("polly", err)
}

func (c *Client) resolveClient() (synthClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(c.cfg.Region))
	if err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, "polly", fmt.Errorf("load aws config: %w", err))
	}
	c.client = polly.NewFromConfig(awsCfg)
	return c.client, nil
}
