// Package extract turns unstructured text into fixed-schema structured values with a single AI call.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
)

// CompleterSource hands out a Completer for a resolved model and key set.
type CompleterSource interface {
	For(res credentials.Resolution) (completer llm.Completer, err error)
}

// Context carries what the model should know besides the raw text.
type Context struct {
	// Existing is the structured entity being imported into or tailored.
	Existing interface{}
	// TargetRole is an optional role hint.
	TargetRole string
	// Job is the structured job for tailoring.
	Job *model.Job
}

// Result is a schema-conforming extraction output.
type Result struct {
	Kind Kind
	Data json.RawMessage
}

// Decode unmarshals the result into v.
func (r Result) Decode(v interface{}) (err error) {
	err = json.Unmarshal(r.Data, v)
	if err != nil {
		err = apierr.Upstream(err, "failed to decode "+string(r.Kind)+" result")
		return err
	}
	return err
}

// Service is the Structured Extraction Service.
type Service struct {
	completers CompleterSource
	schemas    map[Kind]*jsonschema.Schema
}

// NewService compiles the schemas and returns a Service.
func NewService(completers CompleterSource) (svc *Service, err error) {
	if completers == nil {
		err = errors.New("completer source is required")
		return svc, err
	}

	var schemas map[Kind]*jsonschema.Schema
	schemas, err = compileSchemas()
	if err != nil {
		return svc, err
	}

	svc = &Service{
		completers: completers,
		schemas:    schemas,
	}
	return svc, err
}

// Extract converts rawText into the schema implied by kind. It makes exactly one
// completion call and never retries.
func (s *Service) Extract(ctx context.Context, kind Kind, rawText string, ectx Context, cfg credentials.ClientConfig) (result Result, err error) {
	var req llm.Request
	req, err = buildExtractionRequest(kind, rawText, ectx)
	if err != nil {
		return result, err
	}

	result, err = s.structured(ctx, kind, req, cfg)
	return result, err
}

// completer resolves the client configuration into a Completer.
func (s *Service) completer(cfg credentials.ClientConfig) (completer llm.Completer, err error) {
	completer, err = s.completers.For(credentials.Resolve(cfg))
	return completer, err
}

// structured runs one JSON completion and returns the validated, normalized output.
func (s *Service) structured(ctx context.Context, kind Kind, req llm.Request, cfg credentials.ClientConfig) (result Result, err error) {
	rs, ok := s.schemas[kind]
	if !ok {
		err = apierr.Newf(apierr.KindValidation, "unknown extraction kind %q", kind)
		return result, err
	}

	var completer llm.Completer
	completer, err = s.completer(cfg)
	if err != nil {
		return result, err
	}

	req.JSON = true

	var text string
	text, err = completer.Complete(ctx, req)
	if err != nil {
		return result, err
	}

	var data []byte
	data, err = normalize(kind, llm.StripCodeFences(text))
	if err != nil {
		return result, err
	}

	err = validate(ctx, rs, kind, data)
	if err != nil {
		return result, err
	}

	result = Result{Kind: kind, Data: data}
	return result, err
}

// text runs one plain-text completion.
func (s *Service) text(ctx context.Context, req llm.Request, cfg credentials.ClientConfig) (text string, err error) {
	var completer llm.Completer
	completer, err = s.completer(cfg)
	if err != nil {
		return text, err
	}

	text, err = completer.Complete(ctx, req)
	if err != nil {
		return text, err
	}

	text = strings.Trim(strings.TrimSpace(text), `"`)
	if text == "" {
		err = apierr.Upstream(errors.New("empty response"), "model returned no text")
		return text, err
	}

	return text, err
}

// normalize parses the model output and coerces it toward the kind's schema:
// absent or null arrays become empty, single strings become one-element lists,
// skill items given as "skills" become "items", unusable gpa values are dropped.
func normalize(kind Kind, text string) (data []byte, err error) {
	var raw interface{}
	err = json.Unmarshal([]byte(text), &raw)
	if err != nil {
		err = apierr.Upstream(err, "model returned malformed JSON")
		return data, err
	}

	if list, isList := raw.([]interface{}); isList && kind == KindPoints {
		raw = map[string]interface{}{"points": list}
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		err = apierr.Upstream(errors.Errorf("expected a JSON object, got %T", raw), "model returned malformed JSON")
		return data, err
	}

	switch kind {
	case KindProfile, KindResumeSection, KindFullResume:
		coerceSections(obj)
	case KindJobListing:
		for _, key := range []string{"keywords", "requirements", "qualifications"} {
			obj[key] = stringList(obj[key])
		}
	case KindPoints:
		obj["points"] = stringList(obj["points"])
	case KindWorkExperienceItem:
		obj = unwrapItem(obj)
		coerceWorkExperience(obj)
	case KindEducationItem:
		obj = unwrapItem(obj)
		coerceEducation(obj)
	case KindSkillItem:
		obj = unwrapItem(obj)
		coerceSkill(obj)
	case KindProjectItem:
		obj = unwrapItem(obj)
		coerceProject(obj)
	}

	data, err = json.Marshal(obj)
	if err != nil {
		err = apierr.Upstream(err, "failed to re-encode model output")
		return data, err
	}

	return data, err
}

func coerceSections(obj map[string]interface{}) {
	obj[model.SectionWorkExperience] = records(obj[model.SectionWorkExperience], coerceWorkExperience)
	obj[model.SectionEducation] = records(obj[model.SectionEducation], coerceEducation)
	obj[model.SectionSkills] = records(obj[model.SectionSkills], coerceSkill)
	obj[model.SectionProjects] = records(obj[model.SectionProjects], coerceProject)
}

// unwrapItem returns the inner object when the model wrapped a single item in a one-key envelope
// such as {"improved_project": {...}}.
func unwrapItem(obj map[string]interface{}) (item map[string]interface{}) {
	item = obj
	if len(obj) != 1 {
		return item
	}
	for _, v := range obj {
		if inner, ok := v.(map[string]interface{}); ok {
			item = inner
		}
	}
	return item
}

func coerceWorkExperience(item map[string]interface{}) {
	item["description"] = stringList(item["description"])
	item["technologies"] = stringList(item["technologies"])
}

func coerceEducation(item map[string]interface{}) {
	item["achievements"] = stringList(item["achievements"])
	switch item["gpa"].(type) {
	case string, float64, nil:
	default:
		delete(item, "gpa")
	}
}

func coerceSkill(item map[string]interface{}) {
	if _, has := item["items"]; !has {
		item["items"] = item["skills"]
	}
	delete(item, "skills")
	item["items"] = stringList(item["items"])
}

func coerceProject(item map[string]interface{}) {
	item["description"] = stringList(item["description"])
	item["technologies"] = stringList(item["technologies"])
}

// records returns v as a list of objects, fixing each with fn. Non-object entries are dropped.
func records(v interface{}, fn func(item map[string]interface{})) (out []interface{}) {
	out = []interface{}{}

	list, ok := v.([]interface{})
	if !ok {
		if single, isObj := v.(map[string]interface{}); isObj {
			list = []interface{}{single}
		}
	}

	for _, entry := range list {
		item, isObj := entry.(map[string]interface{})
		if !isObj {
			continue
		}
		fn(item)
		out = append(out, item)
	}

	return out
}

// stringList coerces v to a list: nil becomes empty, a string becomes one element.
func stringList(v interface{}) (out interface{}) {
	switch t := v.(type) {
	case nil:
		out = []interface{}{}
	case string:
		if strings.TrimSpace(t) == "" {
			out = []interface{}{}
		} else {
			out = []interface{}{t}
		}
	default:
		out = v
	}
	return out
}

// normalizeSections replaces nil lists with empty ones.
func normalizeSections(s *model.Sections) {
	if s.WorkExperience == nil {
		s.WorkExperience = []model.WorkExperience{}
	}
	for i := range s.WorkExperience {
		s.WorkExperience[i].Description = nonNil(s.WorkExperience[i].Description)
		s.WorkExperience[i].Technologies = nonNil(s.WorkExperience[i].Technologies)
	}

	if s.Education == nil {
		s.Education = []model.Education{}
	}
	for i := range s.Education {
		s.Education[i].Achievements = nonNil(s.Education[i].Achievements)
	}

	if s.Skills == nil {
		s.Skills = []model.SkillCategory{}
	}
	for i := range s.Skills {
		s.Skills[i].Items = nonNil(s.Skills[i].Items)
	}

	if s.Projects == nil {
		s.Projects = []model.Project{}
	}
	for i := range s.Projects {
		s.Projects[i].Description = nonNil(s.Projects[i].Description)
		s.Projects[i].Technologies = nonNil(s.Projects[i].Technologies)
	}
}

func nonNil(in []string) (out []string) {
	out = in
	if out == nil {
		out = []string{}
	}
	return out
}
