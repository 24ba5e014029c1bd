package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"outfitapi/models"

	"github.com/go-playground/validator"
)

// ValidationError carries the first offending field as "path: message".
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const invalidImageMessage = "Invalid image URL. Must be a valid URL (http/https) or data URL (data:image/...)"

var fieldMessages = map[string]string{
	"id.required":          "ID is required",
	"description.required": "Description is required",
	"description.min":      "Description is required",
	"description.max":      "Description too long",
	"userItems.required":   "At least one item is required",
	"userItems.min":        "At least one item is required",
	"userItems.max":        "Too many items",
	"imageUrl.itemimage":   invalidImageMessage,
}

var indexSegment = regexp.MustCompile(`\[(\d+)\]`)

func firstValidationIssue(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err.Error()
	}
	fe := fieldErrors[0]
	return fmt.Sprintf("%s: %s", issuePath(fe.Namespace()), issueMessage(fe))
}

// issuePath turns "GenerateOutfitRequest.userItems[0].description" into
// "userItems.0.description".
func issuePath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		namespace = rest
	}
	return indexSegment.ReplaceAllString(namespace, ".$1")
}

func issueMessage(fe validator.FieldError) string {
	if message, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return message
	}
	switch fe.Tag() {
	case "required":
		return "Required"
	case "occasion":
		return enumMessage(models.Occasions, fe.Value())
	case "fit":
		return enumMessage(models.Fits, fe.Value())
	case "weather":
		return enumMessage(models.Weathers, fe.Value())
	case "budget":
		return enumMessage(models.Budgets, fe.Value())
	case "variationname":
		return enumMessage(models.VariationNames, fe.Value())
	case "bodyzone":
		return enumMessage(models.BodyZones, fe.Value())
	case "itemimage":
		return invalidImageMessage
	case "min":
		return boundMessage(fe, "greater than or equal to", "at least")
	case "max":
		return boundMessage(fe, "less than or equal to", "at most")
	}
	return fmt.Sprintf("Failed on %s", fe.Tag())
}

func enumMessage[T ~string](values []T, received interface{}) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("'%s'", v))
	}
	return fmt.Sprintf("Invalid enum value. Expected %s, received '%v'", strings.Join(quoted, " | "), received)
}

func boundMessage(fe validator.FieldError, numeric, sized string) string {
	switch fe.Kind().String() {
	case "string":
		return fmt.Sprintf("String must contain %s %s character(s)", sized, fe.Param())
	case "slice", "array":
		return fmt.Sprintf("Array must contain %s %s element(s)", sized, fe.Param())
	}
	return fmt.Sprintf("Number must be %s %s", numeric, fe.Param())
}

// bindIssue explains a body that echo could not bind. ok is false for syntax errors,
// which are reported as invalid JSON instead.
func bindIssue(err error) (string, bool) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return fmt.Sprintf("%s: Expected %s, received %s", field, jsonKind(typeErr.Type.Kind().String()), typeErr.Value), true
	}
	return "", false
}

func jsonKind(goKind string) string {
	switch goKind {
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
		return "number"
	case "slice", "array":
		return "array"
	case "struct", "map", "ptr":
		return "object"
	case "bool":
		return "boolean"
	}
	return goKind
}
