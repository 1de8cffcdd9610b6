package redisx

import "testing"

func TestRegisterScriptPrimesCache(t *testing.T) {
	c := &Client{}

	info := c.RegisterScript("test_script", "return 1")
	if len(info.SHA) != 40 {
		t.Errorf("SHA length = %d, want 40 hex chars", len(info.SHA))
	}

	sha, ok := c.GetScriptSHA("test_script")
	if !ok {
		t.Fatal("script not cached after RegisterScript")
	}
	if sha != info.SHA {
		t.Errorf("cached sha = %s, want %s", sha, info.SHA)
	}
}

func TestRegisterScriptIsDeterministic(t *testing.T) {
	c := &Client{}

	first := c.RegisterScript("a", "return redis.call('GET', KEYS[1])")
	second := c.RegisterScript("b", "return redis.call('GET', KEYS[1])")
	if first.SHA != second.SHA {
		t.Errorf("same body produced different digests: %s vs %s", first.SHA, second.SHA)
	}

	other := c.RegisterScript("c", "return 0")
	if other.SHA == first.SHA {
		t.Error("different bodies produced the same digest")
	}
}

func TestGetScriptSHAUnknownName(t *testing.T) {
	c := &Client{}
	if _, ok := c.GetScriptSHA("nope"); ok {
		t.Error("unknown script name reported as cached")
	}
}
