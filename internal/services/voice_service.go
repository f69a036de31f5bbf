package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/spf13/viper"
)

const maxAudioClipBytes = 10 * 1024 * 1024
const transcribeTimeout = 30 * time.Second

// voiceEncodings maps the clip formats the mobile client records to the
// recognizer's encoding enum. Anything else is rejected up front.
var voiceEncodings = map[string]speechpb.RecognitionConfig_AudioEncoding{
	"WEBM_OPUS": speechpb.RecognitionConfig_WEBM_OPUS,
	"OGG_OPUS":  speechpb.RecognitionConfig_OGG_OPUS,
	"LINEAR16":  speechpb.RecognitionConfig_LINEAR16,
	"FLAC":      speechpb.RecognitionConfig_FLAC,
	"AMR":       speechpb.RecognitionConfig_AMR,
}

// VoiceService turns a recorded voice clip into text the chat assistant
// can answer. Without speech credentials it serves canned transcripts so
// the chat screen stays testable locally.
type VoiceService struct {
	client *speech.Client
}

// VoiceClipRequest represents a recorded clip submitted for transcription
type VoiceClipRequest struct {
	Audio      string `json:"audio" validate:"required"` // base64 clip
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language"`
}

// VoiceClipResponse carries the transcript for the chat input field
type VoiceClipResponse struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence"`
}

func NewVoiceService() *VoiceService {
	client, err := speech.NewClient(context.Background())
	if err != nil {
		log.Printf("[VOICE] Speech client unavailable, serving mock transcripts: %v", err)
		return &VoiceService{}
	}
	return &VoiceService{client: client}
}

// TranscribeAudio converts a voice clip to chat text
// @Summary Transcribe a voice clip
// @Description Transcribe a recorded voice message for the chat assistant
// @Tags chat
// @Accept json
// @Produce json
// @Param request body VoiceClipRequest true "Voice clip"
// @Success 200 {object} VoiceClipResponse "Transcript"
// @Failure 400 {string} string "Invalid request"
// @Failure 500 {string} string "Transcription failed"
// @Router /chat/voice-transcribe [post]
func (s *VoiceService) TranscribeAudio(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioClipBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req VoiceClipRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	clip, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil || len(clip) == 0 {
		SendErrorResponse(w, "Audio clip is missing or not valid base64", http.StatusBadRequest, nil)
		return
	}

	encoding, ok := voiceEncodings[strings.ToUpper(nonEmpty(req.Encoding, "WEBM_OPUS"))]
	if !ok {
		SendErrorResponse(w, "Unsupported audio encoding", http.StatusBadRequest, nil)
		return
	}

	transcript, confidence, err := s.recognize(r.Context(), clip, encoding, req)
	if err != nil {
		log.Printf("[VOICE] Transcription failed for user %s: %v", userID, err)
		SendErrorResponse(w, "Failed to transcribe audio", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VoiceClipResponse{Transcript: transcript, Confidence: confidence})
}

func (s *VoiceService) recognize(ctx context.Context, clip []byte,
	encoding speechpb.RecognitionConfig_AudioEncoding, req VoiceClipRequest) (string, float32, error) {

	if s.client == nil {
		return "Mock transcript: how do I top up my balance?", 0.95, nil
	}

	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	language := nonEmpty(req.Language, viper.GetString("speech.language"))
	language = nonEmpty(language, "en-US")

	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	resp, err := s.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            int32(sampleRate),
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
			Model:                      "latest_short",
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: clip},
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("recognition failed: %w", err)
	}

	var parts []string
	var confidence float32
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		if result.Alternatives[0].Confidence > confidence {
			confidence = result.Alternatives[0].Confidence
		}
	}
	if len(parts) == 0 {
		return "", 0, fmt.Errorf("no transcription results")
	}

	return strings.Join(parts, " "), confidence, nil
}

func nonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func (s *VoiceService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
