package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/labelscan/backend/internal/config"
	speechmodel "github.com/labelscan/backend/internal/model/speech"
	"github.com/labelscan/backend/internal/service/ai"
	"github.com/labelscan/backend/internal/service/scan"
	"github.com/labelscan/backend/internal/service/session"
	"github.com/labelscan/backend/internal/service/speech"
	"github.com/labelscan/backend/internal/service/vision"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	if !cfg.AI.Enabled() {
		log.Fatal("模型未配置，请先设置 AI_PROVIDER 以及 ARK_* 或 OPENAI_* 环境变量")
	}

	imagePath := flag.String("image", "", "食品标签图片路径 (JPEG/PNG/GIF/WEBP)")
	question := flag.String("ask", "", "摘要之后追加的问题，留空则跳过")
	outputPath := flag.String("speak", "", "把摘要合成为 MP3 并写入该路径，留空则跳过")
	voice := flag.String("voice", "", "TTS 声音: alloy, echo, fable, onyx, nova, shimmer")
	dumpJSON := flag.Bool("json", false, "打印完整的结构化识别结果")
	timeout := flag.Duration("timeout", 2*time.Minute, "整个流程的超时时间")

	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		log.Fatal("请通过 -image 指定标签图片")
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("读取图片失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc, err := buildScanService(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}

	mimeType := vision.DetectMIMEType(data)
	log.Printf("开始识别标签: file=%s type=%s size=%d", *imagePath, mimeType, len(data))

	result, err := svc.Analyze(ctx, data, mimeType)
	if err != nil {
		log.Fatalf("标签识别失败: %v", err)
	}
	if result.FallbackUsed {
		log.Printf("[WARN] 摘要生成失败，已使用本地摘要")
	}

	fmt.Printf("session: %s\n\n%s\n", result.SessionID, result.Summary)

	if *dumpJSON {
		encoded, err := json.MarshalIndent(result.Analysis, "", "  ")
		if err != nil {
			log.Fatalf("序列化识别结果失败: %v", err)
		}
		fmt.Printf("\n%s\n", encoded)
	}

	if strings.TrimSpace(*question) != "" {
		reply, err := svc.Chat(ctx, scan.ChatInput{SessionID: result.SessionID, Message: *question, IsFollowUp: true})
		if err != nil {
			log.Fatalf("追问失败: %v", err)
		}
		fmt.Printf("\nQ: %s\nA: %s\n", *question, reply.Response)
	}

	if *outputPath != "" {
		speak(ctx, cfg.Speech, result.Summary, *voice, *outputPath)
	}
}

func buildScanService(ctx context.Context, aiCfg config.AIConfig) (*scan.Service, error) {
	visionModel, err := aiCfg.NewChatModel(ctx, aiCfg.VisionModelName())
	if err != nil {
		return nil, err
	}
	analyzer, err := vision.NewAnalyzer(visionModel, vision.Options{Timeout: aiCfg.Timeout})
	if err != nil {
		return nil, err
	}

	chatModel, err := aiCfg.NewChatModel(ctx, aiCfg.ChatModelName())
	if err != nil {
		return nil, err
	}
	conversation, err := ai.NewService(ctx, chatModel, aiCfg.Timeout)
	if err != nil {
		return nil, err
	}

	return scan.NewService(analyzer, conversation, session.NewStore(session.Options{})), nil
}

func speak(ctx context.Context, speechCfg config.SpeechConfig, text, voice, outputPath string) {
	if !speechCfg.Enabled {
		log.Fatal("语音服务未启用，请先在环境变量中配置 SPEECH_* 或 OPENAI_API_KEY")
	}

	svc, err := speech.NewService(speechCfg.ToModel())
	if err != nil {
		log.Fatalf("初始化语音服务失败: %v", err)
	}

	log.Printf("开始进行 TTS 合成: provider=%s voice=%s", svc.ProviderName(), voice)

	resp, err := svc.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{Text: text, Voice: voice})
	if err != nil {
		log.Fatalf("TTS 调用失败: %v", err)
	}

	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}

	log.Printf("TTS 合成成功: 输出文件 %s, 大小=%d bytes, 时长=%dms", outputPath, len(resp.AudioData), resp.Duration)
}
