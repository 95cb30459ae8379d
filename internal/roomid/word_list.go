package roomid

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "bright", "gentle", "brave", "calm", "swift",
	"quiet", "bouncy", "fuzzy", "plucky", "merry", "peppy", "sunny", "misty", "frosty", "lucky",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"duckling", "fawn", "lamb", "raccoon", "beaver", "seahorse", "dolphin", "whale", "narwhal", "penguin",
	"flamingo", "pelican", "sparrow", "robin", "toucan", "parrot", "canary", "owl", "badger", "lynx",
}

var things = []string{
	"sunbeam", "stardust", "muffin", "bubble", "sprout", "glimmer", "echo", "marble", "maple", "cocoa",
	"breeze", "meadow", "willow", "ember", "pixel", "biscuit", "cupcake", "toffee", "lantern", "pebble",
	"cottage", "rocket", "comet", "orbit", "nebula", "canyon", "ridge", "harbor", "island", "glacier",
}
