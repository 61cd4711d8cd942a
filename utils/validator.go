package utils

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/villageone/api/models"
)

var registerOnce sync.Once

// RegisterValidators adds the forum tags to gin's validator and reports
// fields by their json names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("forum_section", func(fl validator.FieldLevel) bool {
			return models.ForumSection(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("vote_type", func(fl validator.FieldLevel) bool {
			return models.VoteType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("post_status", func(fl validator.FieldLevel) bool {
			return models.PostStatus(fl.Field().String()).Valid()
		})
	})
}
