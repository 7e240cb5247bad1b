package shader

import (
	"context"
	"fmt"

	gst "github.com/richinsley/goshadertranslator"
)

// Translation is a shader rewritten for the host GL dialect. Names maps
// source identifiers to the identifiers used in Code.
type Translation struct {
	Code  string
	Names map[string]string
}

// Translator rewrites WebGL2 GLSL ES sources for the host.
type Translator interface {
	Translate(stage Stage, source string) (*Translation, error)
}

// ANGLETranslator translates with goshadertranslator, which runs the ANGLE
// shader translator under wazero.
type ANGLETranslator struct {
	translator *gst.ShaderTranslator
	gles       bool
}

// NewANGLETranslator starts the translator. When gles is true the output is
// ESSL, otherwise desktop GLSL 4.10.
func NewANGLETranslator(ctx context.Context, gles bool) (*ANGLETranslator, error) {
	t, err := gst.NewShaderTranslator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start shader translator: %w", err)
	}
	return &ANGLETranslator{translator: t, gles: gles}, nil
}

func (a *ANGLETranslator) Translate(stage Stage, source string) (*Translation, error) {
	outputFormat := gst.OutputFormatGLSL410
	if a.gles {
		outputFormat = gst.OutputFormatESSL
	}
	out, err := a.translator.TranslateShader(source, stage.String(), gst.ShaderSpecWebGL2, outputFormat)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(out.Variables))
	for name, v := range out.Variables {
		names[name] = v.MappedName
	}
	return &Translation{Code: out.Code, Names: names}, nil
}
