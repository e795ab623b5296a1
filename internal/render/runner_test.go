package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
)

func TestRunAllAllFormatsSucceed(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := testDoc(t)
	rs := RunAll(context.Background(), doc, []Format{FormatHTML, FormatEPUB}, testOptions(renderStamp), nil)

	require.True(t, rs.OK())
	require.NoError(t, rs.Err())
	require.Equal(t, "full", rs.Target)
	require.Equal(t, []Format{FormatHTML, FormatEPUB}, rs.Formats())
	require.Len(t, rs.Artifacts(), 2)
	require.Equal(t, FormatHTML, rs.Artifacts()[0].Format, "artifacts come back in request order")
	require.Positive(t, rs.Result(FormatHTML).Duration)
}

func TestRunAllPartialFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := testDoc(t)
	opts := testOptions(renderStamp)
	opts.PDF.Converter = "definitely-absent-converter"

	rs := RunAll(context.Background(), doc, []Format{FormatHTML, FormatPDF, FormatEPUB}, opts, nil)

	require.False(t, rs.OK())
	require.Equal(t, []Format{FormatPDF}, rs.Failed())
	require.Error(t, rs.Err())
	require.True(t, binderrors.IsKind(rs.Err(), binderrors.KindRenderFailure))

	// One format failing never costs the siblings their artifacts.
	require.Len(t, rs.Artifacts(), 2)
	require.NotNil(t, rs.Result(FormatHTML).Artifact)
	require.NotNil(t, rs.Result(FormatEPUB).Artifact)
	require.Nil(t, rs.Result(FormatPDF).Artifact)
}

func TestRunAllUnregisteredFormat(t *testing.T) {
	defer goleak.VerifyNone(t)

	doc := testDoc(t)
	rs := RunAll(context.Background(), doc, []Format{Format("docx")}, testOptions(renderStamp), nil)

	require.False(t, rs.OK())
	res := rs.Result(Format("docx"))
	require.Error(t, res.Err)
	require.True(t, binderrors.IsKind(res.Err, binderrors.KindRenderFailure))
	require.Contains(t, res.Err.Error(), "no renderer registered")
}

func TestRunAllNoFormats(t *testing.T) {
	doc := testDoc(t)
	rs := RunAll(context.Background(), doc, nil, testOptions(renderStamp), nil)
	require.True(t, rs.OK())
	require.Empty(t, rs.Artifacts())
}
