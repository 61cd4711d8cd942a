package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mojocn/base64Captcha"
)

// CaptchaTTL bounds how long an issued captcha can be answered.
const CaptchaTTL = 10 * time.Minute

const captchaPrefix = "captcha:"

var (
	captchaOnce  sync.Once
	captchaStore base64Captcha.Store
)

// CaptchaStore returns the Redis-backed answer store, or the library's
// in-process store when Redis is off.
func CaptchaStore() base64Captcha.Store {
	captchaOnce.Do(func() {
		if GetRedis() != nil {
			captchaStore = redisCaptchaStore{ttl: CaptchaTTL}
			return
		}
		captchaStore = base64Captcha.DefaultMemStore
	})
	return captchaStore
}

// GenerateCaptcha creates a five digit captcha and returns its id and a
// data URI the client can render.
func GenerateCaptcha() (string, string, error) {
	driver := base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80)
	id, b64, _, err := base64Captcha.NewCaptcha(driver, CaptchaStore()).Generate()
	return id, b64, err
}

// VerifyCaptcha checks an answer and consumes the captcha either way, so
// every id gets one attempt.
func VerifyCaptcha(id, answer string) bool {
	id, answer = strings.TrimSpace(id), strings.TrimSpace(answer)
	if id == "" || answer == "" {
		return false
	}
	return CaptchaStore().Verify(id, answer, true)
}

type redisCaptchaStore struct {
	ttl time.Duration
}

func (s redisCaptchaStore) Set(id, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return GetRedis().Set(ctx, captchaPrefix+id, value, s.ttl).Err()
}

func (s redisCaptchaStore) Get(id string, clear bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rc := GetRedis()
	var (
		v   string
		err error
	)
	if clear {
		v, err = rc.GetDel(ctx, captchaPrefix+id).Result()
	} else {
		v, err = rc.Get(ctx, captchaPrefix+id).Result()
	}
	if err != nil {
		return ""
	}
	return v
}

func (s redisCaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}
