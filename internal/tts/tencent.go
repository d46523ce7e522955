package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"github.com/hajimehoshi/go-mp3"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tcloudtts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/iabetor/pispeak/internal/audio"
	"github.com/iabetor/pispeak/internal/logger"
)

// tencentSampleRate 是向腾讯云请求的音频采样率。
const tencentSampleRate = 16000

// TencentEngine 使用腾讯云 TTS 实现语音合成。
// 适用于中国大陆网络环境，支持多种中文音色。
type TencentEngine struct {
	client    *tcloudtts.Client
	voiceType int64
	speed     float64
	out       *audio.Queue
}

// TencentOptions 腾讯云 TTS 引擎参数。
type TencentOptions struct {
	SecretID  string
	SecretKey string
	VoiceType int64
	Region    string
	Speed     float64
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(opts TencentOptions) (*TencentEngine, error) {
	if opts.SecretID == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}

	if opts.VoiceType == 0 {
		opts.VoiceType = 1001 // 默认音色：智瑜（女声）
	}
	if opts.Region == "" {
		opts.Region = "ap-guangzhou"
	}
	if opts.Speed == 0 {
		opts.Speed = 1.0
	}

	credential := common.NewCredential(opts.SecretID, opts.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tcloudtts.NewClient(credential, opts.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 引擎已初始化 (voice=%d, region=%s)", opts.VoiceType, opts.Region)

	return &TencentEngine{
		client:    client,
		voiceType: opts.VoiceType,
		speed:     opts.Speed,
		out:       audio.NewQueue(),
	}, nil
}

// Name 返回引擎名称。
func (e *TencentEngine) Name() string { return string(EngineTencent) }

// VoiceID 返回当前音色编号。
func (e *TencentEngine) VoiceID() string { return strconv.FormatInt(e.voiceType, 10) }

// Voices 腾讯云音色由服务端维护，这里不做枚举。
func (e *TencentEngine) Voices() []Voice { return nil }

// Out 返回输出队列。
func (e *TencentEngine) Out() *audio.Queue { return e.out }

// StreamInfo 返回输出音频格式。
func (e *TencentEngine) StreamInfo() StreamInfo {
	return StreamInfo{Format: FormatS16, Channels: 1, SampleRate: tencentSampleRate}
}

// Synthesize 将文本合成为单声道 16-bit PCM 并推入输出队列。
// 腾讯云返回 base64 的 MP3，解码后下混为单声道。
func (e *TencentEngine) Synthesize(ctx context.Context, text string) bool {
	logger.Debugf("[tts] tencent: 正在合成 %d 个字符，音色=%d", len([]rune(text)), e.voiceType)

	request := tcloudtts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.VoiceType = common.Int64Ptr(e.voiceType)
	request.Codec = common.StringPtr("mp3")
	request.SampleRate = common.Uint64Ptr(tencentSampleRate)
	request.Speed = common.Float64Ptr(e.speed)
	request.Volume = common.Float64Ptr(5.0)

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		logger.Errorf("[tts] tencent: 合成失败: %v", err)
		return false
	}

	if response.Response == nil || response.Response.Audio == nil {
		logger.Errorf("[tts] tencent: 未返回音频数据")
		return false
	}

	mp3Data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		logger.Errorf("[tts] tencent: base64 解码失败: %v", err)
		return false
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(mp3Data))
	if err != nil {
		logger.Errorf("[tts] tencent: MP3 解码失败: %v", err)
		return false
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		logger.Errorf("[tts] tencent: 读取 PCM 数据失败: %v", err)
		return false
	}

	// go-mp3 输出 16-bit LE 立体声，下混为单声道
	mono := audio.StereoToMono(pcm)

	logger.Debugf("[tts] tencent: 解码得到 %d 字节单声道 PCM，采样率 %d Hz",
		len(mono), decoder.SampleRate())

	e.out.Push(mono)
	return true
}
