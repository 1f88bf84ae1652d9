package image

import "math/rand/v2"

// regionRecipes dispatches anatomical region names to their painters.
// Names not in the table take the generic painter.
var regionRecipes = map[string]func(*canvas, *rand.Rand){
	"chest":   paintChest,
	"abdomen": paintAbdomen,
	"pelvis":  paintPelvis,
	"head":    paintHead,
	"spine":   paintSpine,
	"limb":    paintLimb,
}

func paintRegion(c *canvas, region string, rng *rand.Rand) {
	paint, ok := regionRecipes[region]
	if !ok {
		paint = paintGeneric
	}
	paint(c, rng)
}

// Regions returns the recognized anatomical region names.
func Regions() []string {
	return []string{"chest", "abdomen", "pelvis", "head", "spine", "limb"}
}

func paintChest(c *canvas, rng *rand.Rand) {
	c.fillNoise(rng, 1000, 50)

	// Rib rows, three calcified knots each.
	for i := 0; i < 5; i++ {
		y := c.h/6 + i*(c.h/6)
		for j := 0; j < 3; j++ {
			x := c.w/4 + j*(c.w/4)
			r := randBetween(rng, 15, 25)
			c.addDisk(x, y, r, int32(randBetween(rng, 50, 100)))
		}
	}

	// Heart shadow, slightly off-center.
	heartX := c.w/2 + randBetween(rng, -20, 20)
	heartY := c.h/2 + randBetween(rng, -10, 10)
	c.addDisk(heartX, heartY, randBetween(rng, 30, 50), int32(randBetween(rng, 80, 120)))

	// Lung fields darken both sides.
	c.addDisk(c.w/4, c.h/2, c.w/6, -50)
	c.addDisk(3*c.w/4, c.h/2, c.w/6, -50)

	// Clavicle speckle across the upper chest.
	clavicleY := c.h / 8
	for x := c.w / 4; x < 3*c.w/4; x++ {
		if rng.Float64() < 0.3 {
			c.addRect(x, clavicleY, x+1, clavicleY+3, 100)
		}
	}
}

func paintAbdomen(c *canvas, rng *rand.Rand) {
	c.fillNoise(rng, 800, 30)

	// Spine band over the full height.
	sw := randBetween(rng, 15, 25)
	c.addRect(c.w/2-sw/2, 0, c.w/2+sw/2, c.h, 200)

	// Soft tissue rows.
	for i := 0; i < 3; i++ {
		y := c.h/4 + i*(c.h/4)
		for x := 0; x < c.w; x += 20 {
			if rng.Float64() < 0.4 {
				r := randBetween(rng, 5, 15)
				c.addDisk(x, y, r, int32(randBetween(rng, 30, 80)))
			}
		}
	}

	// Bowel gas pockets.
	for n := randBetween(rng, 5, 15); n > 0; n-- {
		x := randBetween(rng, 0, c.w)
		y := randBetween(rng, c.h/4, 3*c.h/4)
		r := randBetween(rng, 8, 20)
		c.addDisk(x, y, r, -int32(randBetween(rng, 50, 100)))
	}
}

func paintPelvis(c *canvas, rng *rand.Rand) {
	c.fillNoise(rng, 900, 40)

	// Iliac wings.
	c.addDisk(c.w/4, c.h/2, c.w/8, 200)
	c.addDisk(3*c.w/4, c.h/2, c.w/8, 200)

	// Sacrum.
	c.addRect(c.w/2-10, c.h/2-20, c.w/2+10, c.h/2+20, 150)

	// Soft tissue.
	for n := randBetween(rng, 8, 20); n > 0; n-- {
		x := randBetween(rng, 0, c.w)
		y := randBetween(rng, c.h/4, 3*c.h/4)
		r := randBetween(rng, 10, 25)
		c.addDisk(x, y, r, int32(randBetween(rng, 20, 60)))
	}
}

func paintHead(c *canvas, rng *rand.Rand) {
	c.fillNoise(rng, 100, 20)

	cx, cy := c.w/2, c.h/2
	skull := min(c.w, c.h) / 3

	// Skull ring: bright shell, darker interior.
	c.addDisk(cx, cy, skull, 200)
	c.addDisk(cx, cy, skull-20, -100)

	// Ventricles.
	c.addDisk(cx, cy, skull/4, -50)
}

func paintSpine(c *canvas, rng *rand.Rand) {
	c.fillNoise(rng, 1000, 50)

	// Vertebral column.
	for i := 0; i < 7; i++ {
		y := c.h/8 + i*(c.h/8)
		vw := c.w / 8
		c.addRect(c.w/2-vw/2, y-10, c.w/2+vw/2, y+10, 150)
	}

	// Soft tissue.
	for n := randBetween(rng, 10, 25); n > 0; n-- {
		x := randBetween(rng, 0, c.w)
		y := randBetween(rng, 0, c.h)
		r := randBetween(rng, 8, 20)
		c.addDisk(x, y, r, int32(randBetween(rng, 30, 70)))
	}
}

func paintLimb(c *canvas, rng *rand.Rand) {
	c.fillNoise(rng, 1200, 60)

	// Long bone down the middle.
	bw := randBetween(rng, 20, 40)
	c.addRect(c.w/2-bw/2, 0, c.w/2+bw/2, c.h, 300)

	// Soft tissue.
	for n := randBetween(rng, 15, 30); n > 0; n-- {
		x := randBetween(rng, 0, c.w)
		y := randBetween(rng, 0, c.h)
		r := randBetween(rng, 5, 15)
		c.addDisk(x, y, r, int32(randBetween(rng, 20, 50)))
	}
}

func paintGeneric(c *canvas, rng *rand.Rand) {
	c.fillNoise(rng, 1000, 100)

	for n := randBetween(rng, 3, 8); n > 0; n-- {
		x := randBetween(rng, 0, c.w)
		y := randBetween(rng, 0, c.h)
		r := randBetween(rng, 10, 30)
		c.addDisk(x, y, r, int32(randBetween(rng, 100, 300)))
	}
}
