package thumbs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPath(t *testing.T) {
	assert.Equal(t, "f/f8", HashPath("Foo.png"))
	assert.Equal(t, "a/a9", HashPath("Example.jpg"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "f/f8/Foo.png", SourceKey("Foo.png"))
	assert.Equal(t, "thumb/f/f8/Foo.png", ThumbDir("Foo.png"))
	assert.Equal(t, "thumb/f/f8/Foo.png/120px-Foo.png", ThumbKey("Foo.png", 120, "png"))
}

func TestThumbNameAppendsOutputExtension(t *testing.T) {
	assert.Equal(t, "120px-Foo.png", ThumbName("Foo.png", 120, "png"))
	assert.Equal(t, "120px-Foo.PNG", ThumbName("Foo.PNG", 120, "png"))
	assert.Equal(t, "120px-Foo.webp.png", ThumbName("Foo.webp", 120, "png"))
	assert.Equal(t, "120px-Foo.jpeg", ThumbName("Foo.jpeg", 120, "jpeg"))
	assert.Equal(t, "120px-Foo.jpg", ThumbName("Foo.jpg", 120, ""))
}
