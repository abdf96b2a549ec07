package conf

import (
	"bytes"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

// LoadSettings 读取JSON/YAML格式的配置, v必须为指针
// 可以传入多个文件，json、yaml可以混用，后面文件的配置会覆盖前面的配置
// json 能被yaml.Unmarshal解析，但是c风格注释会被解析成kv值
// 支持(https://github.com/go-playground/validator)的校验格式，比如：struct {Url string `yaml:"url" validate:"required,url,min=5,max=256"`}
func LoadSettings(v any, filenames ...string) error {
	for _, filename := range filenames {
		ext := filepath.Ext(filename)
		if content, err := os.ReadFile(filename); err != nil {
			return errors.Wrap(err, "read settings file error")
		} else if isJson(ext) || isYaml(ext) {
			if err = yaml.Unmarshal(content, v); err != nil {
				return errors.Wrapf(err, "unmarshal settings file \"%s\" error", filename)
			}
		} else {
			return errors.Errorf("unsupported settings format of \"%s\"", filename)
		}
	}

	return ValidateSettings(v)
}

func isJson(ext string) bool {
	return strings.EqualFold(ext, ".json") || strings.EqualFold(ext, ".json5")
}

func isYaml(ext string) bool {
	return strings.EqualFold(ext, ".yaml") || strings.EqualFold(ext, ".yml")
}

type translation struct {
	tag    string
	text   string
	params func(fe validator.FieldError) []string
}

var translations = []translation{
	{"required", "settings \"{0}\" required", nil},
	{"gt", "settings \"{0}\" must be greater than {1}", withParam},
	{"gte", "settings \"{0}\" must be at least {1}", withParam},
	{"oneof", "settings \"{0}\" must be one of [{1}]", withParam},
	{"hostname_port", "settings \"{0}\" must be host:port", nil},
}

func withParam(fe validator.FieldError) []string {
	return []string{fe.Namespace(), fe.Param()}
}

// ValidateSettings 校验v, 错误信息中的字段名使用json tag
func ValidateSettings(v any) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if tag, ok := field.Tag.Lookup("json"); ok && tag != "" {
			return strings.SplitN(tag, ",", 2)[0]
		}
		return field.Name
	})
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")

	for _, t := range translations {
		t := t
		_ = validate.RegisterTranslation(t.tag, trans, func(ut ut.Translator) error {
			return ut.Add(t.tag, t.text, true) // see universal-translator for details
		}, func(ut ut.Translator, fe validator.FieldError) string {
			params := []string{fe.Namespace()}
			if t.params != nil {
				params = t.params(fe)
			}
			s, _ := ut.T(t.tag, params...)
			return s
		})
	}

	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return errors.Wrap(err, "validate settings error")
	}

	buff := bytes.NewBufferString("")
	for _, s := range errs.Translate(trans) {
		buff.WriteString(s)
		buff.WriteString("\n")
	}
	return errors.New(strings.TrimSuffix(buff.String(), "\n"))
}

func WriteSettings(v any, filename string) error {
	ext := filepath.Ext(filename)

	var j []byte
	var err error
	if isJson(ext) {
		j, err = jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	} else if isYaml(ext) {
		j, err = yaml.Marshal(v)
	} else {
		err = errors.Errorf("the extension of file \"%s\" must be .json,.yaml,.yml", filename)
	}

	if err != nil {
		return errors.Wrap(err, "marshal settings error")
	}

	if err = os.WriteFile(filename, j, 0o664); err != nil {
		return errors.Wrap(err, "write settings file error")
	}

	return nil
}
