package multipart

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// ErrInvalidTarget is returned by Bind when the target is not a non-nil
// pointer to a struct.
var ErrInvalidTarget = errors.New("bind target must be a non-nil struct pointer")

// Bind populates a struct from a buffered form. Fields tagged `file:"name"`
// receive buffered uploads (FileBuffer, *FileBuffer, []FileBuffer or
// []*FileBuffer); fields tagged `form:"name"` receive field values (string,
// []string, bool, integer and float kinds).
//
//	type UploadRequest struct {
//		Title   string        `form:"title"`
//		Avatar  FileBuffer    `file:"avatar"`
//		Gallery []*FileBuffer `file:"gallery"`
//	}
func Bind(form *BufferedForm, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return ErrInvalidTarget
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return ErrInvalidTarget
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		if !field.CanSet() {
			continue
		}
		ft := rt.Field(i)

		if tag := ft.Tag.Get("file"); tag != "" && tag != "-" {
			if err := setFileField(field, form.Files[tag]); err != nil {
				return fmt.Errorf("field %s: %w", ft.Name, err)
			}
			continue
		}
		if tag := ft.Tag.Get("form"); tag != "" && tag != "-" {
			if err := setFormField(field, form.Fields[tag]); err != nil {
				return fmt.Errorf("field %s: %w", ft.Name, err)
			}
		}
	}
	return nil
}

var fileBufferType = reflect.TypeOf(FileBuffer{})

func setFileField(field reflect.Value, files []*FileBuffer) error {
	if len(files) == 0 {
		return nil
	}

	switch field.Kind() {
	case reflect.Ptr:
		if field.Type().Elem() != fileBufferType {
			return fmt.Errorf("unsupported file field type %s", field.Type())
		}
		field.Set(reflect.ValueOf(files[0]))
		return nil

	case reflect.Slice:
		elem := field.Type().Elem()
		slice := reflect.MakeSlice(field.Type(), len(files), len(files))
		for i, fb := range files {
			switch {
			case elem.Kind() == reflect.Ptr && elem.Elem() == fileBufferType:
				slice.Index(i).Set(reflect.ValueOf(fb))
			case elem == fileBufferType:
				slice.Index(i).Set(reflect.ValueOf(*fb))
			default:
				return fmt.Errorf("unsupported file field type %s", field.Type())
			}
		}
		field.Set(slice)
		return nil

	case reflect.Struct:
		if field.Type() != fileBufferType {
			return fmt.Errorf("unsupported file field type %s", field.Type())
		}
		field.Set(reflect.ValueOf(*files[0]))
		return nil

	default:
		return fmt.Errorf("unsupported file field type %s", field.Type())
	}
}

func setFormField(field reflect.Value, values []string) error {
	if len(values) == 0 {
		return nil
	}

	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
		slice := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, v := range values {
			slice.Index(i).SetString(v)
		}
		field.Set(slice)
		return nil
	}

	value := values[0]
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool %q", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer %q", value)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float %q", value)
		}
		field.SetFloat(n)
	default:
		return fmt.Errorf("unsupported form field type %s", field.Type())
	}
	return nil
}
