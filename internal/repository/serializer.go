package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mbeoliero/ringlink/pkg/secure"
	"gorm.io/gorm/schema"
)

// SealedSerializer encrypts string columns tagged serializer:sealed.
// Without a cipher values are stored as they are.
type SealedSerializer struct {
	cipher *secure.Cipher
}

func init() {
	RegisterSealedSerializer(nil)
}

// RegisterSealedSerializer installs the sealed serializer for every model
func RegisterSealedSerializer(c *secure.Cipher) {
	schema.RegisterSerializer("sealed", SealedSerializer{cipher: c})
}

// Scan implements schema.SerializerInterface
func (s SealedSerializer) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue interface{}) error {
	var raw string
	switch v := dbValue.(type) {
	case nil:
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("sealed: unsupported value %T", dbValue)
	}

	plain := raw
	if s.cipher != nil {
		var err error
		if plain, err = s.cipher.Open(raw); err != nil {
			return err
		}
	}
	field.ReflectValueOf(ctx, dst).SetString(plain)
	return nil
}

// Value implements schema.SerializerValuerInterface
func (s SealedSerializer) Value(ctx context.Context, field *schema.Field, dst reflect.Value, fieldValue interface{}) (interface{}, error) {
	plain, ok := fieldValue.(string)
	if !ok {
		return nil, fmt.Errorf("sealed: unsupported field %T", fieldValue)
	}
	if s.cipher == nil {
		return plain, nil
	}
	return s.cipher.Seal(plain)
}
