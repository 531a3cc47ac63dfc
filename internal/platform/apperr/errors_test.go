package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type ErrorsSuite struct{}

var _ = Suite(&ErrorsSuite{})

func (s *ErrorsSuite) TestCodeOfWrappedError(c *C) {
	base := NotFound("公园 %s 不存在", "p1")
	err := fmt.Errorf("评分失败: %w", base)

	c.Assert(CodeOf(err), Equals, CodeNotFound)
	c.Assert(HTTPStatus(err), Equals, http.StatusNotFound)
	c.Assert(errors.Is(err, New(CodeNotFound, "任意")), Equals, true)
	c.Assert(errors.Is(err, New(CodeValidation, "任意")), Equals, false)
}

func (s *ErrorsSuite) TestPlainErrorIsInternal(c *C) {
	err := errors.New("boom")
	c.Assert(CodeOf(err), Equals, CodeInternal)
	c.Assert(HTTPStatus(err), Equals, http.StatusInternalServerError)
}

func (s *ErrorsSuite) TestStatusMapping(c *C) {
	c.Assert(HTTPStatus(Validation("x")), Equals, http.StatusBadRequest)
	c.Assert(HTTPStatus(New(CodeConflict, "x")), Equals, http.StatusConflict)
	c.Assert(HTTPStatus(New(CodeForbidden, "x")), Equals, http.StatusForbidden)
	c.Assert(HTTPStatus(New(CodeUnavailable, "x")), Equals, http.StatusServiceUnavailable)
}

func (s *ErrorsSuite) TestWrapKeepsCause(c *C) {
	cause := errors.New("redis down")
	err := Wrap(CodeUnavailable, "存储不可用", cause)
	c.Assert(errors.Is(err, cause), Equals, true)
	c.Assert(err.Error(), Equals, "存储不可用: redis down")
}
